// Package chat records live Twitch chat into replay archives.
//
// It provides two entrypoints:
//   - Record: joins a channel's IRC chat anonymously and streams every
//     message into an archive file, shaped like the records the replay API
//     serves, so the renderer and the import scanner consume recordings and
//     fetched replays the same way.
//   - StartAutoRecorder: polls the channel's live status and runs Record for
//     the duration of each live session. Each session becomes its own archive
//     named live-<channel>-<unix start>, finalized when the stream ends.
//
// Recording needs no credentials: the IRC connection uses Twitch's anonymous
// justinfan login, which can read but not send.
package chat
