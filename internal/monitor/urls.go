package monitor

import "regexp"

// videoURLPatterns matches shareable video links for each supported platform.
var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel|tv)/[A-Za-z0-9_-]+/?`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?tiktok\.com/@[\w.-]+/video/\d+`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:youtube\.com/(?:watch\?v=|shorts/)|youtu\.be/)[\w-]+`),
	regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/posts/[\w-]+-\d+-\w+`),
}

// ExtractVideoURLs returns all recognized video links in a message, in order
// of appearance, deduplicated.
func ExtractVideoURLs(text string) []string {
	if text == "" {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	for _, pattern := range videoURLPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if !seen[match] {
				seen[match] = true
				urls = append(urls, match)
			}
		}
	}
	return urls
}
