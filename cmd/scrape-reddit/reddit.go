package main

import (
	"time"

	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/sink"
)

const (
	targetURL   = "https://www.reddit.com/r/internships/new/"
	postsFile   = "reddit_posts.json"
	settleDelay = 5 * time.Second

	// navigationCeiling leaves room for the scroll script and the settle delay.
	navigationCeiling = 60 * time.Second
)

const instruction = `Extract all Reddit posts visible on this page. For each post, extract:
- title: The title of the post
- author: The username of the post author (without u/ prefix)
- upvotes: The upvote count (can be a number or text like "Vote")
- comments_count: Number of comments
- post_url: The relative URL to the post (starts with /r/internships/comments/...)
- time_posted: When the post was made (e.g., "2 hours ago", "1 day ago")
- content_preview: Any preview text shown for the post

Return all posts you can find on the page.`

// scrollScript walks the listing so lazily loaded posts render, then returns
// to the top where the newest posts are.
const scrollScript = `window.scrollTo(0, 0);
await new Promise(r => setTimeout(r, 1000));
for (let i = 0; i < 3; i++) {
  window.scrollBy(0, 500);
  await new Promise(r => setTimeout(r, 1000));
}
window.scrollTo(0, 0);
await new Promise(r => setTimeout(r, 500));`

// summaryLabels names the schema fields printed for each post.
var summaryLabels = map[string]string{
	"title":           "Title",
	"author":          "Author",
	"upvotes":         "Upvotes",
	"comments_count":  "Comments",
	"time_posted":     "Posted",
	"content_preview": "Preview",
}

// summaryFields lists the labelled schema fields in schema order.
func summaryFields() []sink.Field {
	var fields []sink.Field
	for _, name := range postSchema().FieldNames() {
		lbl, ok := summaryLabels[name]
		if !ok {
			continue
		}
		fields = append(fields, sink.Field{Key: name, Label: lbl, Preview: name == "content_preview"})
	}
	return fields
}

func postSchema() models.RecordSchema {
	return models.RecordSchema{
		Name: "RedditPost",
		Fields: []models.FieldSpec{
			{Name: "title", Type: models.FieldString, Required: true, Description: "The title of the post"},
			{Name: "author", Type: models.FieldString, Required: true, Description: "Username without the u/ prefix"},
			{Name: "upvotes", Type: models.FieldString, Description: "Upvote count as shown"},
			{Name: "comments_count", Type: models.FieldString, Description: "Number of comments"},
			{Name: "post_url", Type: models.FieldString, Description: "Relative URL of the post"},
			{Name: "time_posted", Type: models.FieldString, Description: "When the post was made, as shown"},
			{Name: "content_preview", Type: models.FieldString, Description: "Preview text shown for the post"},
		},
	}
}

// listingPolicy waits for the network to settle, scrolls, then waits again
// for content the scroll pulled in.
func listingPolicy(base models.PageLoadPolicy) models.PageLoadPolicy {
	p := base
	p.Quiescence = models.NetworkIdle
	p.InjectedScript = scrollScript
	p.SettleDelay = settleDelay
	if p.NavigationTimeout < navigationCeiling {
		p.NavigationTimeout = navigationCeiling
	}
	return p
}
