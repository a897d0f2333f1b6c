package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/finfetch/internal/options"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정 확인",
	Long: `환경변수(.env) 설정과 파이프라인 옵션(YAML)을 검증하고 출력합니다.

Example:
  go run ./cmd/finfetch config --show
  go run ./cmd/finfetch config --show --options finfetch.yaml`,
	RunE: runConfig,
}

var configShow bool

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configShow, "show", false, "유효 옵션을 YAML로 출력")
}

func runConfig(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	PrintDoubleSeparator()
	PrintKeyValue("Env", a.cfg.Env, 14)
	PrintKeyValue("Log level", a.cfg.LogLevel, 14)
	PrintKeyValue("Redis", strconv.FormatBool(a.redis.Enabled()), 14)
	PrintKeyValue("API addr", a.cfg.APIAddr, 14)
	PrintKeyValue("Options hash", a.optsHash, 14)
	PrintSeparator()
	for _, name := range a.registry.Names() {
		cfg, ok := a.registry.SourceConfig(name)
		if !ok {
			continue
		}
		PrintKeyValue(name, sourceStatus(cfg.Enabled, cfg.APIKey != ""), 14)
	}
	PrintDoubleSeparator()

	if !configShow {
		PrintSuccess("Configuration is valid")
		return nil
	}

	data, err := options.Marshal(a.opts)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func sourceStatus(enabled, hasKey bool) string {
	switch {
	case !enabled:
		return "disabled"
	case hasKey:
		return "enabled (api key set)"
	default:
		return "enabled"
	}
}
