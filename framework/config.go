package framework

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CompilerVersion = "0.8.9"
	DefaultNetwork  = "ropsten"
	DefaultContract = "MetaNFT"

	DefaultArtifactsDir   = "artifacts"
	DefaultConfirmTimeout = 5 * time.Minute
	DefaultLogLevel       = "info"

	// LocalDevKeyHex is the first prefunded account of a local hardhat or anvil
	// node. The hardhat profile always signs with it.
	LocalDevKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	localRPC      = "http://127.0.0.1:8545"
	mumbaiRPCBase = "https://polygon-mumbai.g.alchemy.com/v2/"
	polygonRPC    = "https://rpc-mainnet.maticvigil.com"
)

// Environment variables read when building network profiles.
const (
	EnvAPIURL     = "API_URL"
	EnvPrivateKey = "PRIVATE_KEY"
	EnvAlchemyID  = "alchemyId"
)

// NetworkProfile holds the connection parameters of one named network.
type NetworkProfile struct {
	Name     string   `yaml:"name"`
	RPCURL   string   `yaml:"url"`
	ChainID  uint64   `yaml:"chainId"`
	Accounts []string `yaml:"accounts"`

	// environment variable the RPC URL depends on, used in error hints
	rpcEnv string
}

type Config struct {
	DefaultNetwork  string
	CompilerVersion string
	ArtifactsDir    string
	Contract        string
	ConfirmTimeout  time.Duration
	LogLevel        string
	Networks        map[string]*NetworkProfile
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("network", DefaultNetwork)
	v.SetDefault("contract", DefaultContract)
	v.SetDefault("artifacts", DefaultArtifactsDir)
	v.SetDefault("timeout", DefaultConfirmTimeout)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetEnvPrefix("DEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_url", EnvAPIURL)
	_ = v.BindEnv("private_key", EnvPrivateKey)
	_ = v.BindEnv("alchemy_id", EnvAlchemyID)
}

// LoadConfig builds every network profile from the values bound on v.
// Profiles are not validated here: an unused network with missing
// credentials must not prevent deploying to another one.
func LoadConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		return nil, &ConfigError{Field: "timeout", Reason: fmt.Sprintf("must be positive, got %q", v.GetString("timeout"))}
	}

	privateKey := strings.TrimSpace(v.GetString("private_key"))
	accounts := func() []string {
		if privateKey == "" {
			return nil
		}
		return []string{privateKey}
	}

	var mumbaiRPC string
	if id := strings.TrimSpace(v.GetString("alchemy_id")); id != "" {
		mumbaiRPC = mumbaiRPCBase + id
	}

	networks := map[string]*NetworkProfile{
		"hardhat": {Name: "hardhat", RPCURL: localRPC, ChainID: 31337, Accounts: []string{LocalDevKeyHex}},
		"ropsten": {Name: "ropsten", RPCURL: strings.TrimSpace(v.GetString("api_url")), ChainID: 3, Accounts: accounts(), rpcEnv: EnvAPIURL},
		"mumbai":  {Name: "mumbai", RPCURL: mumbaiRPC, ChainID: 80001, Accounts: accounts(), rpcEnv: EnvAlchemyID},
		"polygon": {Name: "polygon", RPCURL: polygonRPC, ChainID: 137, Accounts: accounts()},
	}

	return &Config{
		DefaultNetwork:  v.GetString("network"),
		CompilerVersion: CompilerVersion,
		ArtifactsDir:    v.GetString("artifacts"),
		Contract:        v.GetString("contract"),
		ConfirmTimeout:  timeout,
		LogLevel:        v.GetString("log_level"),
		Networks:        networks,
	}, nil
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Network returns the validated profile called name, or the default
// network when name is empty.
func (c *Config) Network(name string) (*NetworkProfile, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	profile, ok := c.Networks[name]
	if !ok {
		return nil, &ConfigError{
			Field:  "network",
			Reason: fmt.Sprintf("unknown network %q (known: %s)", name, strings.Join(c.NetworkNames(), ", ")),
		}
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Validate checks that the profile can be used for a deployment.
func (p *NetworkProfile) Validate() error {
	if p.RPCURL == "" {
		reason := "not set"
		if p.rpcEnv != "" {
			reason = "not set (export " + p.rpcEnv + ")"
		}
		return &ConfigError{Network: p.Name, Field: "rpc_url", Reason: reason}
	}
	if strings.Contains(p.RPCURL, "${") {
		return &ConfigError{Network: p.Name, Field: "rpc_url", Reason: "contains an unresolved placeholder"}
	}
	u, err := url.Parse(p.RPCURL)
	if err != nil {
		return &ConfigError{Network: p.Name, Field: "rpc_url", Reason: err.Error()}
	}
	if hasUndefinedPart(u) {
		return &ConfigError{Network: p.Name, Field: "rpc_url", Reason: "contains an unresolved placeholder"}
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return &ConfigError{Network: p.Name, Field: "rpc_url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigError{Network: p.Name, Field: "rpc_url", Reason: "missing host"}
	}

	if len(p.Accounts) == 0 {
		return &ConfigError{Network: p.Name, Field: "accounts", Reason: "no account keys (export " + EnvPrivateKey + ")"}
	}
	for i, acc := range p.Accounts {
		if _, err := NewPrivKeyFromHex(acc); err != nil {
			// never echo the key itself
			return &ConfigError{Network: p.Name, Field: "accounts", Reason: fmt.Sprintf("account %d is not a valid private key", i)}
		}
	}
	return nil
}

// hasUndefinedPart reports whether the host, a path segment or a query
// value is the literal "undefined" left by an unset variable.
func hasUndefinedPart(u *url.URL) bool {
	const undef = "undefined"
	if u.Hostname() == undef {
		return true
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == undef {
			return true
		}
	}
	for _, values := range u.Query() {
		for _, v := range values {
			if v == undef {
				return true
			}
		}
	}
	return false
}

// Key returns the signing key of the first account.
func (p *NetworkProfile) Key() (*PrivKey, error) {
	if len(p.Accounts) == 0 {
		return nil, &ConfigError{Network: p.Name, Field: "accounts", Reason: "no account keys"}
	}
	return NewPrivKeyFromHex(p.Accounts[0])
}

// Redacted returns a copy of the profile whose keys are replaced by the
// addresses they control.
func (p *NetworkProfile) Redacted() *NetworkProfile {
	out := *p
	out.Accounts = make([]string, len(p.Accounts))
	for i, acc := range p.Accounts {
		key, err := NewPrivKeyFromHex(acc)
		if err != nil {
			out.Accounts[i] = "<invalid key>"
			continue
		}
		out.Accounts[i] = "key for " + key.Address().Hex()
	}
	return &out
}
