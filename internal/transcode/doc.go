// Package transcode converts stable container files into the edit-ready
// output format. Conversions write into a work directory and are renamed
// into place on success so the output folder never exposes partial files.
package transcode
