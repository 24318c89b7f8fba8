// Package startup handles application initialization: configuration
// loading from the environment, build information, external tool
// detection (yt-dlp, ffmpeg), and structured startup/shutdown logging.
package startup
