// Package article defines the generated post and its typed content blocks,
// plus the renderers that turn a post into Markdown (review console, local
// drafts), HTML (Ghost, local drafts), and Notion block payloads.
package article
