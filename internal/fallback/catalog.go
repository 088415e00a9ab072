// Package fallback is the core of the service: the ordered strategy
// catalog, the per-attempt runner, and the orchestration loop that
// walks the catalog until one mechanism yields a playable file.
package fallback

import (
	"fmt"
	"net/url"

	"github.com/vidfetch/vidfetch/internal/core/config"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

// ProxySource hands out egress proxy identities. The pool refreshes
// itself out-of-band; the catalog only reads.
type ProxySource interface {
	Loaded() bool
	Next() string
}

// Adapters collects one adapter per family. Nil entries disable the
// family regardless of other gating.
type Adapters struct {
	YTDLP      strategy.Adapter
	Cobalt     strategy.Adapter
	Invidious  strategy.Adapter
	Piped      strategy.Adapter
	Native     strategy.Adapter
	Streamlink strategy.Adapter
}

// Availability records which optional capabilities were detected at
// process start. Evaluated once, not per job.
type Availability struct {
	YTDLPBinary      bool
	StreamlinkBinary bool
	Cookies          bool
}

// Catalog builds the ordered, gated strategy list for a job. The base
// order is hand-ranked by expected bypass success; rebuilding with the
// same configuration yields the same names, order, and gating. Proxy
// params are the exception: each build draws the next identities from
// the rotating pool, so consecutive jobs spread across egress IPs.
type Catalog struct {
	cfg      config.StrategiesConfig
	adapters Adapters
	avail    Availability
	proxies  ProxySource
}

func NewCatalog(cfg config.StrategiesConfig, adapters Adapters, avail Availability, proxies ProxySource) *Catalog {
	return &Catalog{cfg: cfg, adapters: adapters, avail: avail, proxies: proxies}
}

// Build assembles the descriptor list. Gating rules:
//   - cookie variants only when cookie material is configured
//   - exec families only when their binary was found at startup
//   - the native family only when enabled in config
//   - proxied variants of the fastest mechanisms are prepended when the
//     proxy pool is loaded, because proxying is the highest-probability
//     bypass and must run before anything else
func (c *Catalog) Build() []strategy.Descriptor {
	var out []strategy.Descriptor

	ytdlpOK := c.avail.YTDLPBinary && c.adapters.YTDLP != nil
	cookies := c.avail.Cookies

	if ytdlpOK && c.proxies != nil && c.proxies.Loaded() {
		for _, client := range []string{"ios", "android"} {
			out = append(out, strategy.Descriptor{
				Name:    "yt-dlp " + client + " (proxy)",
				Kind:    "ytdlp",
				Adapter: c.adapters.YTDLP,
				Timeout: c.cfg.AttemptTimeout("ytdlp"),
				Params: strategy.Params{
					"player_client": client,
					"skip_webpage":  "1",
					"proxy":         c.proxies.Next(),
				},
			})
		}
	}

	if ytdlpOK {
		out = append(out, c.ytdlpVariants(cookies)...)
	}

	for _, apiURL := range c.cfg.CobaltInstances {
		out = append(out, strategy.Descriptor{
			Name:    "cobalt (" + hostLabel(apiURL) + ")",
			Kind:    "cobalt",
			Adapter: c.adapters.Cobalt,
			Timeout: c.cfg.AttemptTimeout("cobalt"),
			Params:  strategy.Params{"api_url": apiURL},
		})
	}

	for _, instance := range c.cfg.InvidiousInstances {
		out = append(out, strategy.Descriptor{
			Name:    "invidious (" + hostLabel(instance) + ")",
			Kind:    "invidious",
			Adapter: c.adapters.Invidious,
			Timeout: c.cfg.AttemptTimeout("invidious"),
			Params:  strategy.Params{"instance": instance},
		})
	}

	for _, instance := range c.cfg.PipedInstances {
		out = append(out, strategy.Descriptor{
			Name:    "piped (" + hostLabel(instance) + ")",
			Kind:    "piped",
			Adapter: c.adapters.Piped,
			Timeout: c.cfg.AttemptTimeout("piped"),
			Params:  strategy.Params{"instance": instance},
		})
	}

	if c.cfg.NativeExtractor && c.adapters.Native != nil {
		out = append(out, strategy.Descriptor{
			Name:    "native-go extractor",
			Kind:    "native",
			Adapter: c.adapters.Native,
			Timeout: c.cfg.AttemptTimeout("native"),
			Params:  strategy.Params{},
		})
	}

	if c.avail.StreamlinkBinary && c.adapters.Streamlink != nil {
		out = append(out, strategy.Descriptor{
			Name:    "streamlink",
			Kind:    "streamlink",
			Adapter: c.adapters.Streamlink,
			Timeout: c.cfg.AttemptTimeout("streamlink"),
			Params:  strategy.Params{},
		})
	}

	// Drop families whose adapter is missing (nil) so the loop never
	// dereferences one; instance lists may reference disabled families.
	filtered := out[:0]
	for _, d := range out {
		if d.Adapter != nil {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// ytdlpVariants is the hand-ranked player-client ladder: ios first
// (bypasses PO-token checks on datacenter IPs), then android, then the
// less-restricted embedded and web clients.
func (c *Catalog) ytdlpVariants(cookies bool) []strategy.Descriptor {
	type variant struct {
		name        string
		client      string
		useCookies  bool
		skipWebpage bool
		gated       bool // requires cookie material
	}
	variants := []variant{
		{"yt-dlp ios", "ios", false, true, false},
		{"yt-dlp ios+cookies", "ios", true, false, true},
		{"yt-dlp android", "android", false, true, false},
		{"yt-dlp android+cookies", "android", true, false, true},
		{"yt-dlp tv_embedded", "tv_embedded", cookies, !cookies, false},
		{"yt-dlp mweb", "mweb", false, true, false},
		{"yt-dlp web_creator", "web_creator", cookies, !cookies, false},
	}

	var out []strategy.Descriptor
	for _, v := range variants {
		if v.gated && !cookies {
			continue
		}
		params := strategy.Params{
			"player_client": v.client,
		}
		if v.useCookies {
			params["cookies"] = "1"
		}
		if v.skipWebpage {
			params["skip_webpage"] = "1"
		}
		out = append(out, strategy.Descriptor{
			Name:    v.name,
			Kind:    "ytdlp",
			Adapter: c.adapters.YTDLP,
			Timeout: c.cfg.AttemptTimeout("ytdlp"),
			Params:  params,
		})
	}
	return out
}

func hostLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

// Describe renders the catalog for the strategies endpoint.
func Describe(descriptors []strategy.Descriptor) []string {
	out := make([]string, 0, len(descriptors))
	for i, d := range descriptors {
		out = append(out, fmt.Sprintf("%d. %s [%s]", i+1, d.Name, d.Kind))
	}
	return out
}
