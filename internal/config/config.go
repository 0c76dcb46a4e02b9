// Package config loads the immutable compiler configuration record.
// A config.yaml in the working directory overrides the parallelism
// thresholds and register-allocation algorithm selector; absent that,
// environment variables are consulted; absent those, built-in
// defaults apply. The record is built once at startup and threaded
// explicitly through the pipeline rather than read from a process-wide
// global, so every stage's behavior is reproducible from its inputs
// alone.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sysyrv/sysyrv/internal/diag"
)

// RegAllocAlgo names a register allocation strategy. graph-coloring
// is the only one this compiler implements; any other value is
// accepted as a config field but rejected at validation time since
// this build does not implement one.
type RegAllocAlgo string

const (
	GraphColoring RegAllocAlgo = "graph-coloring"
)

// Config is the immutable record built by Load. Field names mirror
// the YAML keys and environment variables that configure them.
type Config struct {
	NumParallelForGlobalGenAsm int `yaml:"num_parallel_for_global_gen_asm"`
	NumParallelForFuncGenAsm int `yaml:"num_parallel_for_func_gen_asm"`
	NumParallelForBlockGenAsm int `yaml:"num_parallel_for_block_gen_asm"`
	RegAllocAlgo RegAllocAlgo `yaml:"reg_alloc_algo"`
	OpenAutoParallel bool `yaml:"open_auto_parallel"`
}

// Default returns the built-in defaults (12/4/3, graph-coloring,
// auto-parallel off).
func Default() Config {
	return Config{
		NumParallelForGlobalGenAsm: 12,
		NumParallelForFuncGenAsm: 4,
		NumParallelForBlockGenAsm: 3,
		RegAllocAlgo: GraphColoring,
		OpenAutoParallel: false,
	}
}

const fileName = "config.yaml"

// Load resolves Config from, in priority order: config.yaml in
// workdir; then the NUM_PARALLEL_FOR_{GLOBAL,FUNC,BLOCK}_GEN_ASM,
// REG_ALLOC_ALGO, OPEN_AUTO_PARALLEL environment variables; then
// Default(). It never re-reads any of these sources afterwards.
func Load(workdir string) (Config, error) {
	path := filepath.Join(workdir, fileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg := Default()
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, diag.Wrap(err, diag.IO, "parsing %s", path)
		}
		return validate(cfg)
	case os.IsNotExist(err):
		return validate(fromEnv())
	default:
		return Config{}, diag.Wrap(err, diag.IO, "reading %s", path)
	}
}

func fromEnv() Config {
	cfg := Default()
	if v, ok := lookupInt("NUM_PARALLEL_FOR_GLOBAL_GEN_ASM"); ok {
		cfg.NumParallelForGlobalGenAsm = v
	}
	if v, ok := lookupInt("NUM_PARALLEL_FOR_FUNC_GEN_ASM"); ok {
		cfg.NumParallelForFuncGenAsm = v
	}
	if v, ok := lookupInt("NUM_PARALLEL_FOR_BLOCK_GEN_ASM"); ok {
		cfg.NumParallelForBlockGenAsm = v
	}
	if v, ok := os.LookupEnv("REG_ALLOC_ALGO"); ok {
		cfg.RegAllocAlgo = RegAllocAlgo(v)
	}
	if v, ok := os.LookupEnv("OPEN_AUTO_PARALLEL"); ok {
		cfg.OpenAutoParallel = v == "1" || v == "true"
	}
	return cfg
}

func lookupInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func validate(cfg Config) (Config, error) {
	if cfg.NumParallelForGlobalGenAsm < 1 || cfg.NumParallelForFuncGenAsm < 1 || cfg.NumParallelForBlockGenAsm < 1 {
		return Config{}, errors.New("config: parallelism counts must be >= 1 (use 1 to disable parallelism)")
	}
	if cfg.RegAllocAlgo != GraphColoring {
		return Config{}, diag.New(diag.IO, "config: unsupported reg_alloc_algo %q; this build only implements %q", cfg.RegAllocAlgo, GraphColoring)
	}
	return cfg, nil
}
