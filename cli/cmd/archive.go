package cmd

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/archive"
	"github.com/gridops-tools/ctgrun/cli/config"
)

// resolveArchive returns the archive settings from flags and config, or nil
// when neither names a backend or path.
func resolveArchive(c *cli.Context, cfg *config.Config) (*archive.Config, error) {
	ac := configVal(cfg, func(cf *config.Config) config.ArchiveConfig { return cf.Archive })

	out := &archive.Config{
		Dataset:      resolveString(c, "archive-dataset", ac.Dataset),
		Backend:      resolveString(c, "archive-backend", ac.Backend),
		Path:         resolveString(c, "archive-path", ac.Path),
		Region:       resolveString(c, "archive-region", ac.Region),
		Endpoint:     resolveString(c, "archive-endpoint", ac.Endpoint),
		UsePathStyle: resolveBool(c, "archive-s3-path-style", ac.S3PathStyle),
	}
	if out.Backend == "" && out.Path == "" {
		return nil, nil
	}
	switch out.Backend {
	case "":
		out.Backend = archive.BackendFS
	case archive.BackendFS, archive.BackendS3:
	default:
		return nil, usageError("invalid --archive-backend %q (must be fs or s3)", out.Backend)
	}
	if out.Path == "" {
		return nil, usageError("--archive-path is required when --archive-backend=%s", out.Backend)
	}
	if out.Backend == archive.BackendS3 {
		bucket, _ := archive.ParseS3Path(out.Path)
		if bucket == "" {
			return nil, usageError("--archive-path must name a bucket for the s3 backend")
		}
	}
	return out, nil
}

// openArchive resolves and opens the archive for read-only commands, which
// cannot work without one.
func openArchive(ctx context.Context, c *cli.Context) (*archive.Archive, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	ac, err := resolveArchive(c, cfg)
	if err != nil {
		return nil, err
	}
	if ac == nil {
		return nil, usageError("--archive-path (or archive.path in config) is required")
	}
	a, err := archive.Open(ctx, *ac)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitFailure)
	}
	return a, nil
}
