package engine

import (
	"fmt"

	"github.com/Rise0x00/Linux-Aria2-Torrent-Client/internal/config"
)

// Args builds the aria2c command line. Seed ratio and seed time are both
// zero so the task keeps seeding until aria2c is stopped. Rate limits are
// only passed when positive.
func Args(cfg *config.Config) []string {
	args := []string{
		"--enable-rpc",
		fmt.Sprintf("--rpc-listen-port=%d", cfg.Engine.Port),
		"--quiet",
		"--continue=true",
		"--seed-ratio=0.0",
		"--seed-time=0",
		"--allow-overwrite=true",
		"--enable-dht=true",
		"--bt-enable-lpd=true",
		fmt.Sprintf("--bt-tracker-connect-timeout=%d", cfg.Engine.TrackerConnectTimeout),
	}

	if cfg.Engine.Secret != "" {
		args = append(args, "--rpc-secret="+cfg.Engine.Secret)
	}
	if cfg.MaxDownloadSpeed > 0 {
		args = append(args, fmt.Sprintf("--max-download-limit=%dK", cfg.MaxDownloadSpeed))
	}
	if cfg.MaxUploadSpeed > 0 {
		args = append(args, fmt.Sprintf("--max-upload-limit=%dK", cfg.MaxUploadSpeed))
	}

	return args
}
