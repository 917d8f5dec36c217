package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/adapter"
	redisadapter "github.com/gridops-tools/ctgrun/adapter/redis"
	"github.com/gridops-tools/ctgrun/adapter/webhook"
	"github.com/gridops-tools/ctgrun/cli/config"
)

// Adapter types accepted by --adapter.
const (
	adapterWebhook = "webhook"
	adapterRedis   = "redis"
)

func adapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "adapter", Usage: "Notify on completion: webhook or redis"},
		&cli.StringFlag{Name: "adapter-url", Usage: "Webhook endpoint or redis:// URL"},
		&cli.StringFlag{Name: "adapter-channel", Usage: "Redis pub/sub channel"},
		&cli.StringFlag{Name: "adapter-latest-key", Usage: "Redis hash recording the latest event per case"},
		&cli.StringSliceFlag{Name: "adapter-header", Usage: "Webhook header as key=value (repeatable)"},
		&cli.DurationFlag{Name: "adapter-timeout", Usage: "Per-publish timeout (0 = adapter default)"},
		&cli.IntFlag{Name: "adapter-retries", Usage: "Retries after the first publish attempt", Value: webhook.DefaultRetries},
	}
}

// adapterChoice holds the resolved notification settings.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	latestKey   string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter settings for adapterType.
// Flags win over the config file; config headers are merged under flag headers.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	switch adapterType {
	case adapterWebhook, adapterRedis:
	default:
		return nil, fmt.Errorf("unknown adapter type %q (want %s or %s)", adapterType, adapterWebhook, adapterRedis)
	}

	ac := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(cf *config.Config) string { return cf.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(cf *config.Config) string { return cf.Adapter.Channel })),
		latestKey:   c.String("adapter-latest-key"),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(cf *config.Config) time.Duration { return cf.Adapter.Timeout.Duration })),
		retries:     c.Int("adapter-retries"),
		headers:     map[string]string{},
	}
	if ac.url == "" {
		return nil, fmt.Errorf("--adapter-url is required when --adapter=%s", adapterType)
	}
	if !c.IsSet("adapter-retries") {
		if r := configVal(cfg, func(cf *config.Config) *int { return cf.Adapter.Retries }); r != nil {
			ac.retries = *r
		}
	}

	for k, v := range configVal(cfg, func(cf *config.Config) map[string]string { return cf.Adapter.Headers }) {
		ac.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q: want key=value", h)
		}
		ac.headers[strings.TrimSpace(k)] = v
	}
	return ac, nil
}

// buildAdapter creates the notifier for ac.
func buildAdapter(ac *adapterChoice) (adapter.Adapter, error) {
	switch ac.adapterType {
	case adapterWebhook:
		return webhook.New(webhook.Config{
			URL:     ac.url,
			Headers: ac.headers,
			Timeout: ac.timeout,
			Retries: ac.retries,
		})
	case adapterRedis:
		return redisadapter.New(redisadapter.Config{
			URL:       ac.url,
			Channel:   ac.channel,
			LatestKey: ac.latestKey,
			Timeout:   ac.timeout,
			Retries:   ac.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.adapterType)
	}
}
