// Package ffmpeg wraps the ffmpeg command line for container-to-ProRes
// conversion. Command execution sits behind an Executor interface so tests
// can run without the binary installed.
package ffmpeg
