// Package paper provides the download page source for the current Paper version.
package paper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// DefaultSourceURL is the download page whose first heading carries the version.
const DefaultSourceURL = "https://papermc.io/downloads/paper"

// DefaultHeadingSelector selects the heading that carries the version.
const DefaultHeadingSelector = "h2"

// Error variables for heading parser errors
var (
	// ErrInvalidXPath is returned when the XPath expression syntax is invalid
	ErrInvalidXPath = errors.New("invalid XPath expression")
	// ErrNoSelectorOrXPath is returned when neither selector nor xpath is provided
	ErrNoSelectorOrXPath = errors.New("either selector or xpath must be provided")
)

// HeadingParser extracts the text of the first element matching a CSS
// selector or an XPath expression.
type HeadingParser struct {
	// Selector is the CSS selector of the heading (default: h2)
	Selector string
	// XPath is an XPath expression used instead of Selector when set
	XPath string
}

// NewHeadingParser creates a parser. When both selector and xpath are
// empty the parser looks for the first h2 element.
func NewHeadingParser(selector, xpath string) *HeadingParser {
	if selector == "" && xpath == "" {
		selector = DefaultHeadingSelector
	}
	return &HeadingParser{Selector: selector, XPath: xpath}
}

// Parse returns the trimmed text of the first matching element. A document
// without a matching element yields ErrParse.
func (p *HeadingParser) Parse(content []byte) (string, error) {
	var text string
	var err error

	switch {
	case p.XPath != "":
		text, err = p.parseWithXPath(content)
	case p.Selector != "":
		text, err = p.parseWithCSS(content)
	default:
		return "", ErrNoSelectorOrXPath
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// parseWithCSS returns the text content of the first element matching the selector.
func (p *HeadingParser) parseWithCSS(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse HTML: %v", ErrParse, err)
	}

	selection := doc.Find(p.Selector)
	if selection.Length() == 0 {
		return "", fmt.Errorf("%w: no element matching %q", ErrParse, p.Selector)
	}
	return selection.First().Text(), nil
}

// parseWithXPath returns the text content of the first node matching the expression.
func (p *HeadingParser) parseWithXPath(content []byte) (string, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse HTML: %v", ErrParse, err)
	}

	node, err := htmlquery.Query(doc, p.XPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidXPath, err)
	}
	if node == nil {
		return "", fmt.Errorf("%w: no element matching %q", ErrParse, p.XPath)
	}
	return htmlquery.InnerText(node), nil
}

// VersionSource reports the version currently published upstream.
type VersionSource interface {
	Current(ctx context.Context) (string, error)
}

// Source fetches the download page and extracts the version from its
// first heading.
type Source struct {
	url        string
	parser     *HeadingParser
	httpClient *HTTPClient
}

// NewSource creates a source for url. A nil parser or client falls back
// to the defaults.
func NewSource(url string, parser *HeadingParser, client *HTTPClient) *Source {
	if url == "" {
		url = DefaultSourceURL
	}
	if parser == nil {
		parser = NewHeadingParser("", "")
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &Source{url: url, parser: parser, httpClient: client}
}

// URL returns the page this source reads.
func (s *Source) URL() string {
	return s.url
}

// Current fetches the page and returns the version found in its heading.
// Errors wrap ErrNetwork, ErrParse or ErrVersionNotFound.
func (s *Source) Current(ctx context.Context) (string, error) {
	content, err := s.httpClient.Fetch(ctx, s.url)
	if err != nil {
		return "", err
	}

	heading, err := s.parser.Parse(content)
	if err != nil {
		return "", err
	}

	return ExtractVersion(heading)
}
