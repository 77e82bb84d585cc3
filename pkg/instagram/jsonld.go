package instagram

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LDObject is the subset of a schema.org node read from a post page's
// embedded structured data.
type LDObject struct {
	Types         []string
	Caption       string
	Description   string
	Name          string
	ArticleBody   string
	UploadDate    string
	DatePublished string
	DateCreated   string
	HasVideo      bool
}

var mediaTypes = map[string]bool{
	"VideoObject":        true,
	"Clip":               true,
	"ImageObject":        true,
	"SocialMediaPosting": true,
}

// IsMedia reports whether the node describes a post.
func (o LDObject) IsMedia() bool {
	for _, t := range o.Types {
		if mediaTypes[t] {
			return true
		}
	}
	return false
}

// IsVideo reports whether the node describes a video.
func (o LDObject) IsVideo() bool {
	for _, t := range o.Types {
		if t == "VideoObject" || t == "Clip" {
			return true
		}
	}
	return o.HasVideo
}

// CaptionText returns caption, description, articleBody or name, in
// that order of preference.
func (o LDObject) CaptionText() (string, bool) {
	for _, s := range []string{o.Caption, o.Description, o.ArticleBody, o.Name} {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// Date returns uploadDate, datePublished or dateCreated.
func (o LDObject) Date() (string, bool) {
	for _, s := range []string{o.UploadDate, o.DatePublished, o.DateCreated} {
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// ParseLD decodes one ld+json blob. The blob may be a single node, a
// list of nodes, or a node carrying an @graph.
func ParseLD(raw string) ([]LDObject, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty ld+json block")
	}

	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode ld+json: %w", err)
	}

	var out []LDObject
	collectLD(v, &out)
	return out, nil
}

func collectLD(v interface{}, out *[]LDObject) {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			collectLD(item, out)
		}
	case map[string]interface{}:
		if graph, ok := node["@graph"]; ok {
			collectLD(graph, out)
		}
		if _, ok := node["@type"]; !ok {
			return
		}
		obj := LDObject{
			Types:         typesOf(node["@type"]),
			Caption:       stringOf(node["caption"]),
			Description:   stringOf(node["description"]),
			Name:          stringOf(node["name"]),
			ArticleBody:   stringOf(node["articleBody"]),
			UploadDate:    stringOf(node["uploadDate"]),
			DatePublished: stringOf(node["datePublished"]),
			DateCreated:   stringOf(node["dateCreated"]),
		}
		if video, ok := node["video"]; ok && video != nil {
			obj.HasVideo = true
		}
		*out = append(*out, obj)
	}
}

func typesOf(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// stringOf accepts plain strings and {"text": ...} objects.
func stringOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if s, ok := t["text"].(string); ok {
			return s
		}
	}
	return ""
}
