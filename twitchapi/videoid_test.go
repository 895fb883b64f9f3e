package twitchapi

import "testing"

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "12345", want: "12345"},
		{in: " 12345 ", want: "12345"},
		{in: "https://www.twitch.tv/videos/12345", want: "12345"},
		{in: "https://twitch.tv/videos/12345?t=1h2m", want: "12345"},
		{in: "http://m.twitch.tv/videos/12345", want: "12345"},
		{in: "twitch.tv/videos/12345", want: "12345"},
		{in: "https://www.twitch.tv/somechannel/v/67890", want: "67890"},
		{in: "", wantErr: true},
		{in: "not a video", wantErr: true},
		{in: "https://example.com/videos/12345", wantErr: true},
		{in: "https://www.twitch.tv/somechannel", wantErr: true},
		{in: "https://www.twitch.tv/videos/abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVideoID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseVideoID(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVideoID(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVideoID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
