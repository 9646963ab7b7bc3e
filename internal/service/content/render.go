package content

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	models "folio/internal/domain/models/content"
)

const (
	// xmlDateLayout is the attribute format for createDate and updateDate
	xmlDateLayout = "2006-01-02T15:04:05"

	// urlNameAlias is the property that overrides the node name in urlName
	urlNameAlias = "urlName"

	defaultElementName = "node"
)

// RenderInput is everything the renderer reads. Nothing is fetched while rendering.
type RenderInput struct {
	Node        models.Node
	ContentType string
	Version     models.Version
}

// RenderXML renders a published version as a single element named after the content type. Node
// metadata becomes attributes and each property becomes a child element holding its value as
// CDATA.
func RenderXML(in RenderInput) (string, error) {
	name := in.ContentType
	if !aliasPattern.MatchString(name) {
		name = defaultElementName
	}

	template := "0"
	if in.Version.TemplateID != nil {
		template = strconv.FormatInt(*in.Version.TemplateID, 10)
	}

	start := xml.StartElement{
		Name: xml.Name{Local: name},
		Attr: []xml.Attr{
			attr("id", strconv.FormatInt(in.Node.ID, 10)),
			attr("version", in.Version.ID.String()),
			attr("parentID", strconv.FormatInt(in.Node.ParentID, 10)),
			attr("level", strconv.Itoa(in.Node.Level)),
			attr("writerID", in.Version.WriterID),
			attr("creatorID", in.Node.CreatorID),
			attr("nodeType", in.ContentType),
			attr("template", template),
			attr("sortOrder", strconv.Itoa(in.Node.SortOrder)),
			attr("createDate", formatDate(in.Node.CreatedAt)),
			attr("updateDate", formatDate(in.Version.UpdatedAt)),
			attr("nodeName", in.Version.Text),
			attr("urlName", urlName(in.Version)),
			attr("path", in.Node.Path.String()),
			attr("isDoc", ""),
		},
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(start); err != nil {
		return "", fmt.Errorf("render node %d: %w", in.Node.ID, err)
	}
	for _, p := range in.Version.Properties {
		if !aliasPattern.MatchString(p.Alias) {
			return "", fmt.Errorf("render node %d: invalid property alias %q", in.Node.ID, p.Alias)
		}
		value := struct {
			Value string `xml:",cdata"`
		}{p.Value}
		if err := enc.EncodeElement(value, xml.StartElement{Name: xml.Name{Local: p.Alias}}); err != nil {
			return "", fmt.Errorf("render property %s of node %d: %w", p.Alias, in.Node.ID, err)
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return "", fmt.Errorf("render node %d: %w", in.Node.ID, err)
	}
	if err := enc.Flush(); err != nil {
		return "", fmt.Errorf("render node %d: %w", in.Node.ID, err)
	}
	return buf.String(), nil
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(xmlDateLayout)
}

func urlName(v models.Version) string {
	if p, ok := v.Property(urlNameAlias); ok && strings.TrimSpace(p.Value) != "" {
		return URLSegment(p.Value)
	}
	return URLSegment(v.Text)
}

// URLSegment lower-cases s, strips accents and joins the remaining words with hyphens.
// "Über Café & Bar" becomes "uber-cafe-bar".
func URLSegment(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
