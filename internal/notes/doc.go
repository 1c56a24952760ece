// Package notes renders and amends the markdown reference notes produced
// for each processed reel. A note is YAML frontmatter followed by level-two
// sections; enhancement rewrites the AI sections in place and never touches
// the Original Description, Video, or Thumbnail sections, so manual edits
// elsewhere survive re-enhancement.
package notes
