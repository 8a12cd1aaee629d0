package models

import (
	"fmt"
	"strings"
)

// PostFile holds the technical details of one remote media file.
type PostFile struct {
	Size      int64  `json:"size"`
	Hash      string `json:"md5"`
	URL       string `json:"url"`
	Extension string `json:"ext"`
}

// PostVariant is a lower-resolution rendition of a post, when available.
type PostVariant struct {
	URL string `json:"url"`
}

// Post is one search result from the remote content API.
type Post struct {
	ID      int64               `json:"id"`
	File    PostFile            `json:"file"`
	Sample  PostVariant         `json:"sample"`
	Preview PostVariant         `json:"preview"`
	Rating  string              `json:"rating"`
	Tags    map[string][]string `json:"tags"`
}

// PostsResponse wraps the posts.json endpoint payload.
type PostsResponse struct {
	Posts []Post `json:"posts"`
}

// Tag is one entry from the tags.json endpoint.
type Tag struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Count    int64  `json:"post_count"`
	Category int    `json:"category"`
}

// Validate rejects posts missing the fields every consumer relies on.
func (p *Post) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("post id is required")
	}
	if strings.TrimSpace(p.File.URL) == "" {
		return fmt.Errorf("post %d: file url is required", p.ID)
	}
	if strings.TrimSpace(p.File.Hash) == "" {
		return fmt.Errorf("post %d: file hash is required", p.ID)
	}
	if strings.TrimSpace(p.File.Extension) == "" {
		return fmt.Errorf("post %d: file extension is required", p.ID)
	}
	if p.File.Size < 0 {
		return fmt.Errorf("post %d: file size out of range", p.ID)
	}
	return nil
}

// Validate checks every post in the response.
func (r *PostsResponse) Validate() error {
	for i := range r.Posts {
		if err := r.Posts[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
