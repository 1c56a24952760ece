// Package transcode implements the compression stage. Transcoding is an
// optimization: any failure, including a missing ffmpeg binary, degrades to
// the original download instead of failing the item.
package transcode
