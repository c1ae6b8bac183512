// Package audio plays sound files on the local speaker with gopxl/beep.
//
// Each stream is decoded by file extension (mp3, wav, ogg, flac), resampled
// to the speaker rate, and wrapped as Ctrl(Volume(decoder)): Ctrl pauses and
// resumes, Volume applies content volume times the device master gain.
// Mutations of running streams happen under speaker.Lock.
package audio
