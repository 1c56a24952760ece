// Package scrape extracts post metadata from Instagram reel and post pages.
//
// Instagram serves Open Graph meta tags to anonymous requests carrying
// browser-like headers; the scraper reads og:title, og:description,
// og:image, and og:video and then parses the description string, which
// packs likes, comments, author, and posting date into a single line.
// No session or API credentials are involved.
package scrape
