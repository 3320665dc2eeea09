package bot

import (
	"context"
	"fmt"

	"github.com/obentoo/paperbot/internal/common/logger"
	"github.com/obentoo/paperbot/internal/paper"
)

// Replies sent when a command cannot complete
const (
	ReplyWrongVersion   = "Wrong version input"
	ReplyRequestProblem = "Some problem with request"
	ReplyFetchFailed    = "Could not fetch the current Paper version"
)

// BuildFinder finds and renders the latest build of a version.
type BuildFinder interface {
	Lookup(ctx context.Context, version string) (*paper.BuildRecord, error)
	Summary(r *paper.BuildRecord) string
}

// Commands implements the version commands.
type Commands struct {
	source paper.VersionSource
	store  paper.Store
	builds BuildFinder
	log    *logger.Logger
}

// NewCommands creates the command set.
func NewCommands(source paper.VersionSource, store paper.Store, builds BuildFinder) *Commands {
	return &Commands{
		source: source,
		store:  store,
		builds: builds,
		log:    logger.Named("commands"),
	}
}

// All returns the commands for registration in a Router.
func (c *Commands) All() []*Command {
	return []*Command{
		{
			Name:        "version",
			Usage:       "version",
			Description: "Show the current Paper version",
			Handler:     c.Version,
		},
		{
			Name:        "last_version",
			Usage:       "last_version [version]",
			Description: "Show the latest build of a version (default: current)",
			Handler:     c.LastVersion,
		},
	}
}

// Version fetches the current version, stores it even when unchanged and
// replies with it. A failed save is logged; the reply is still sent.
func (c *Commands) Version(ctx context.Context, req *Request) (string, error) {
	current, err := c.source.Current(ctx)
	if err != nil {
		return ReplyFetchFailed, fmt.Errorf("fetching current version: %w", err)
	}

	if err := c.store.Save(ctx, current); err != nil {
		c.log.Error("Failed to save version %s: %v", current, err)
	}

	return fmt.Sprintf("Actual version: %s", current), nil
}

// LastVersion replies with the latest build of the requested version. Without
// an argument the current version is fetched at call time.
func (c *Commands) LastVersion(ctx context.Context, req *Request) (string, error) {
	version := req.Arg(0)
	if version == "" {
		current, err := c.source.Current(ctx)
		if err != nil {
			return ReplyFetchFailed, fmt.Errorf("fetching current version: %w", err)
		}
		version = current
	}

	record, err := c.builds.Lookup(ctx, version)
	switch paper.KindOf(err) {
	case paper.KindNone:
		return c.builds.Summary(record), nil
	case paper.KindInvalidVersion:
		return ReplyWrongVersion, err
	default:
		return ReplyRequestProblem, err
	}
}
