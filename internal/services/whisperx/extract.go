package whisperx

// extractArgs builds the ffmpeg arguments that write the first audio stream of
// source as mono 16 kHz signed 16-bit PCM.
func extractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
