package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// parseDuration accepts Go duration strings ("500ms", "1m30s") and bare
// integers, which are taken as nanoseconds to match yaml.v3's native
// decoding. An empty value is zero, deferring to validation defaults.
func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return d, nil
}

// UnmarshalYAML decodes the crawl section, accepting human-readable
// duration strings for the delay fields.
func (c *CrawlConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		PolitenessDelay    string           `yaml:"politeness_delay"`
		RetryAttempts      int              `yaml:"retry_attempts"`
		BackoffBase        string           `yaml:"backoff_base"`
		RetryPhaseDelay    string           `yaml:"retry_phase_delay"`
		CheckpointInterval int              `yaml:"checkpoint_interval"`
		MaxPages           int              `yaml:"max_pages"`
		MaxContentBytes    int64            `yaml:"max_content_bytes"`
		HTTPClient         HTTPClientConfig `yaml:"http_client"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	var err error
	if c.PolitenessDelay, err = parseDuration(raw.PolitenessDelay); err != nil {
		return fmt.Errorf("crawl.politeness_delay: %w", err)
	}
	if c.BackoffBase, err = parseDuration(raw.BackoffBase); err != nil {
		return fmt.Errorf("crawl.backoff_base: %w", err)
	}
	if c.RetryPhaseDelay, err = parseDuration(raw.RetryPhaseDelay); err != nil {
		return fmt.Errorf("crawl.retry_phase_delay: %w", err)
	}
	c.RetryAttempts = raw.RetryAttempts
	c.CheckpointInterval = raw.CheckpointInterval
	c.MaxPages = raw.MaxPages
	c.MaxContentBytes = raw.MaxContentBytes
	c.HTTPClient = raw.HTTPClient
	return nil
}

// UnmarshalYAML decodes the http_client section, accepting human-readable
// duration strings for the timeout fields.
func (h *HTTPClientConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Timeout             string `yaml:"timeout"`
		MaxIdleConns        int    `yaml:"max_idle_conns"`
		MaxIdleConnsPerHost int    `yaml:"max_idle_conns_per_host"`
		IdleConnTimeout     string `yaml:"idle_conn_timeout"`
		TLSHandshakeTimeout string `yaml:"tls_handshake_timeout"`
		DialerTimeout       string `yaml:"dialer_timeout"`
		DialerKeepAlive     string `yaml:"dialer_keep_alive"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timeout", raw.Timeout, &h.Timeout},
		{"idle_conn_timeout", raw.IdleConnTimeout, &h.IdleConnTimeout},
		{"tls_handshake_timeout", raw.TLSHandshakeTimeout, &h.TLSHandshakeTimeout},
		{"dialer_timeout", raw.DialerTimeout, &h.DialerTimeout},
		{"dialer_keep_alive", raw.DialerKeepAlive, &h.DialerKeepAlive},
	}
	for _, f := range fields {
		d, err := parseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("http_client.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	h.MaxIdleConns = raw.MaxIdleConns
	h.MaxIdleConnsPerHost = raw.MaxIdleConnsPerHost
	return nil
}
