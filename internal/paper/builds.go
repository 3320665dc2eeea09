// Package paper provides build metadata lookup against the Paper builds API.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	// Embedded zone database so the display timezone resolves on minimal hosts
	_ "time/tzdata"
)

const (
	// DefaultBuildsURL is the builds endpoint; {version} is replaced per query
	DefaultBuildsURL = "https://api.papermc.io/v2/projects/paper/versions/{version}/builds"
	// DefaultDisplayTimezone is the zone build times are shown in
	DefaultDisplayTimezone = "Europe/Madrid"
	// DisplayTimeLayout renders as DD/MM/YYYY HH:MM:SS
	DisplayTimeLayout = "02/01/2006 15:04:05"
)

// Channel is the distribution track of a build.
type Channel string

const (
	// ChannelDefault is the stable track
	ChannelDefault Channel = "default"
	// ChannelExperimental is the experimental track
	ChannelExperimental Channel = "experimental"
)

// Label returns the display label: "Stable" for the default channel,
// "Experimental" for anything else.
func (c Channel) Label() string {
	if c == ChannelDefault {
		return "Stable"
	}
	return "Experimental"
}

// BuildRecord describes one build of a version.
type BuildRecord struct {
	// Version is the queried version
	Version string
	// Build is the build number
	Build int
	// Channel is the distribution track reported by the API
	Channel Channel
	// Time is when the build was published (UTC)
	Time time.Time
}

// Stable reports whether the build is on the default channel.
func (r *BuildRecord) Stable() bool {
	return r.Channel == ChannelDefault
}

// buildsResponse mirrors the part of the API response that is used.
type buildsResponse struct {
	Builds []buildEntry `json:"builds"`
}

type buildEntry struct {
	Build   int    `json:"build"`
	Time    string `json:"time"`
	Channel string `json:"channel"`
}

// BuildLookup queries the builds API for the latest build of a version.
type BuildLookup struct {
	urlTemplate string
	location    *time.Location
	httpClient  *HTTPClient
}

// NewBuildLookup creates a lookup. Empty arguments fall back to
// DefaultBuildsURL and DefaultDisplayTimezone.
func NewBuildLookup(urlTemplate, timezone string, client *HTTPClient) (*BuildLookup, error) {
	if urlTemplate == "" {
		urlTemplate = DefaultBuildsURL
	}
	if !strings.Contains(urlTemplate, "{version}") {
		return nil, fmt.Errorf("builds URL %q lacks a {version} placeholder", urlTemplate)
	}
	if timezone == "" {
		timezone = DefaultDisplayTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &BuildLookup{urlTemplate: urlTemplate, location: loc, httpClient: client}, nil
}

// URLFor returns the builds endpoint for version.
func (l *BuildLookup) URLFor(version string) string {
	return strings.ReplaceAll(l.urlTemplate, "{version}", url.PathEscape(version))
}

// Lookup returns the most recent build of version.
// A non-2xx status means the version does not exist (ErrInvalidVersion);
// a success without builds is ErrMalformedResponse.
func (l *BuildLookup) Lookup(ctx context.Context, version string) (*BuildRecord, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, fmt.Errorf("%w: empty version", ErrInvalidVersion)
	}

	endpoint := l.URLFor(version)
	resp, err := l.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, fmt.Errorf("%w: %s (status %d)", ErrInvalidVersion, version, resp.StatusCode)
	}

	var payload buildsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformedResponse, err)
	}

	records, err := toRecords(version, payload.Builds)
	if err != nil {
		return nil, err
	}
	return Latest(records)
}

// toRecords converts API entries, keeping response order.
func toRecords(version string, entries []buildEntry) ([]BuildRecord, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no builds in response", ErrMalformedResponse)
	}

	records := make([]BuildRecord, 0, len(entries))
	for i, e := range entries {
		t, err := time.Parse(time.RFC3339, e.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: build %d has invalid time %q", ErrMalformedResponse, i, e.Time)
		}
		records = append(records, BuildRecord{
			Version: version,
			Build:   e.Build,
			Channel: Channel(e.Channel),
			Time:    t.UTC(),
		})
	}
	return records, nil
}

// Latest returns the record with the greatest timestamp. Ties keep the
// earliest record in input order. The input slice is not modified.
func Latest(records []BuildRecord) (*BuildRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no builds in response", ErrMalformedResponse)
	}

	sorted := make([]BuildRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.After(sorted[j].Time)
	})

	latest := sorted[0]
	return &latest, nil
}

// DisplayTime renders the build time in the display timezone.
func (l *BuildLookup) DisplayTime(r *BuildRecord) string {
	return r.Time.In(l.location).Format(DisplayTimeLayout)
}

// Summary renders the chat reply for a build.
func (l *BuildLookup) Summary(r *BuildRecord) string {
	return fmt.Sprintf("Version: %s #%d\n **%s** on **%s**", r.Version, r.Build, r.Channel.Label(), l.DisplayTime(r))
}

// Location returns the display timezone.
func (l *BuildLookup) Location() *time.Location {
	return l.location
}
