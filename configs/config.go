// Package configs loads dicezapd's configuration from CLI flags and a
// .env file (flags win), plus the immutable multiplier-to-note-id YAML
// binding file loaded once at startup.
package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chosanghyuk/dicezap"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved set of deployment parameters for the
// dicezapd daemon.
type Config struct {
	BindAddress string
	Port        int
	DataDir     string

	LNDHost      string
	LNDPort      int
	Network      string
	TLSCertPath  string
	MacaroonPath string

	Domain         string
	BotName        string
	UseRouteHints  bool
	Relays         []string
	ExpireAfter    time.Duration
	RevealAfter    time.Duration
	MultiplierFile string
}

// LNDAddress is the host:port dial target for the LND gRPC interface.
func (c *Config) LNDAddress() string {
	return fmt.Sprintf("%s:%d", c.LNDHost, c.LNDPort)
}

// StorePath is the SQLite database file inside DataDir.
func (c *Config) StorePath() string {
	return c.DataDir + "/dicezap.db"
}

// KeyPath returns the path to one of the three keypair files ("main",
// "nonce", "social") inside DataDir.
func (c *Config) KeyPath(name string) string {
	return c.DataDir + "/" + name + ".json"
}

// Flags declares the urfave/cli flags accepted by dicezapd. Every flag
// also binds to an environment variable of the same name, which
// LoadDotEnv populates as defaults before cli parses os.Args, so a .env
// file and real flags compose together.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "bind-address", Value: "0.0.0.0", EnvVars: []string{"DICEZAP_BIND_ADDRESS"}},
		&cli.IntFlag{Name: "port", Value: 8080, EnvVars: []string{"DICEZAP_PORT"}},
		&cli.StringFlag{Name: "data-dir", Value: "./data", EnvVars: []string{"DICEZAP_DATA_DIR"}},
		&cli.StringFlag{Name: "lnd-host", Value: "127.0.0.1", EnvVars: []string{"DICEZAP_LND_HOST"}},
		&cli.IntFlag{Name: "lnd-port", Value: 10009, EnvVars: []string{"DICEZAP_LND_PORT"}},
		&cli.StringFlag{Name: "network", Value: "mainnet", EnvVars: []string{"DICEZAP_NETWORK"}},
		&cli.StringFlag{Name: "tls-cert", Value: "./tls.cert", EnvVars: []string{"DICEZAP_TLS_CERT"}},
		&cli.StringFlag{Name: "macaroon", Value: "./admin.macaroon", EnvVars: []string{"DICEZAP_MACAROON"}},
		&cli.StringFlag{Name: "domain", Required: true, EnvVars: []string{"DICEZAP_DOMAIN"}},
		&cli.StringFlag{Name: "bot-name", Value: "dicezap", EnvVars: []string{"DICEZAP_BOT_NAME"}},
		&cli.BoolFlag{Name: "use-route-hints", Value: false, EnvVars: []string{"DICEZAP_USE_ROUTE_HINTS"}},
		&cli.StringFlag{Name: "relays", Value: "wss://relay.damus.io", EnvVars: []string{"DICEZAP_RELAYS"}},
		&cli.DurationFlag{Name: "expire-after", Value: 5 * time.Minute, EnvVars: []string{"DICEZAP_EXPIRE_AFTER"}},
		&cli.DurationFlag{Name: "reveal-after", Value: 30 * time.Second, EnvVars: []string{"DICEZAP_REVEAL_AFTER"}},
		&cli.StringFlag{Name: "multiplier-file", Value: "./configs/multipliers.yml", EnvVars: []string{"DICEZAP_MULTIPLIER_FILE"}},
	}
}

// LoadDotEnv loads a .env file into the process environment, ignoring a
// missing file — a .env is an optional convenience, not a requirement.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load .env file %s: %w", path, err)
	}
	return nil
}

// FromContext resolves a Config from a parsed cli.Context.
func FromContext(c *cli.Context) (*Config, error) {
	relays := strings.Split(c.String("relays"), ",")
	for i := range relays {
		relays[i] = strings.TrimSpace(relays[i])
	}

	cfg := &Config{
		BindAddress:    c.String("bind-address"),
		Port:           c.Int("port"),
		DataDir:        c.String("data-dir"),
		LNDHost:        c.String("lnd-host"),
		LNDPort:        c.Int("lnd-port"),
		Network:        c.String("network"),
		TLSCertPath:    c.String("tls-cert"),
		MacaroonPath:   c.String("macaroon"),
		Domain:         c.String("domain"),
		BotName:        c.String("bot-name"),
		UseRouteHints:  c.Bool("use-route-hints"),
		Relays:         relays,
		ExpireAfter:    c.Duration("expire-after"),
		RevealAfter:    c.Duration("reveal-after"),
		MultiplierFile: c.String("multiplier-file"),
	}
	if cfg.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	return cfg, nil
}

// multiplierYAML is one row of the multiplier binding file.
type multiplierYAML struct {
	Label     string `yaml:"label"`
	NoteID    string `yaml:"note_id"`
	MaxBetSat uint64 `yaml:"max_bet_sat"`
}

type multiplierFile struct {
	Multipliers []multiplierYAML `yaml:"multipliers"`
}

// LoadMultipliers reads the multiplier-to-note-id bindings and per-tier
// max-bet table from a YAML file, read once at startup.
func LoadMultipliers(path string) (*dicezap.Multipliers, dicezap.MaxBetTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read multiplier file %s: %w", path, err)
	}

	var parsed multiplierFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse multiplier file %s: %w", path, err)
	}

	notes := make([]dicezap.MultiplierNote, 0, len(parsed.Multipliers))
	maxBet := make(dicezap.MaxBetTable, len(parsed.Multipliers))
	for _, row := range parsed.Multipliers {
		m, err := dicezap.ParseMultiplierLabel(row.Label)
		if err != nil {
			return nil, nil, fmt.Errorf("multiplier file %s: %w", path, err)
		}
		notes = append(notes, dicezap.MultiplierNote{Multiplier: m, NoteID: row.NoteID})
		maxBet[m] = row.MaxBetSat
	}

	return dicezap.NewMultipliers(notes), maxBet, nil
}
