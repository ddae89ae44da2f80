package config

import (
	"fmt"
	"strings"
)

func (c *Config) validate() error {
	if len(c.RelayURLs) == 0 {
		return fmt.Errorf("%s is required", KeyRelayURLs)
	}
	for _, url := range c.RelayURLs {
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return fmt.Errorf("relay URL %q must use ws:// or wss://", url)
		}
	}
	if c.SecretKey == "" {
		return fmt.Errorf("%s is required", KeySecretKey)
	}
	if c.Ack.Threshold < 1 {
		return fmt.Errorf("%s must be at least 1", KeyAckThreshold)
	}
	if c.Ack.WaitSeconds < 1 {
		return fmt.Errorf("%s must be at least 1", KeyAckWaitSeconds)
	}
	return nil
}
