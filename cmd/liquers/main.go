// Command liquers evaluates a query against an in-process environment and
// prints the resulting value. It wires the example command set, an
// in-memory store, and optionally a Redis-backed cache and a recipe
// directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"goa.design/clue/log"

	"github.com/liquers/liquers-go/core/cache"
	"github.com/liquers/liquers-go/core/cache/rediscache"
	"github.com/liquers/liquers-go/core/env"
	"github.com/liquers/liquers-go/core/interpreter"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/recipes"
	"github.com/liquers/liquers-go/core/telemetry"
	"github.com/liquers/liquers-go/examplecmds"
)

func main() {
	var (
		debug      = flag.Bool("debug", false, "enable debug logging")
		memCache   = flag.Bool("cache", false, "memoize evaluations in memory")
		redisAddr  = flag.String("redis", "", "Redis address for the evaluation cache (overrides -cache)")
		recipesDir = flag.String("recipes", "", "directory holding recipes.yaml files")
		showLog    = flag.Bool("log", false, "print the evaluation log")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: liquers [flags] <query>")
		flag.Usage()
		os.Exit(2)
	}

	format := log.FormatTerminal
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debug {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg := env.Config{Logger: telemetry.NewClueLogger()}
	switch {
	case *redisAddr != "":
		cfg.Cache = rediscache.New(rediscache.Options{
			Client: redis.NewClient(&redis.Options{Addr: *redisAddr}),
		})
	case *memCache:
		cfg.Cache = cache.NewMemoryCache()
	}
	e := env.New(cfg)
	if *recipesDir != "" {
		// The store provider default is trivial; rebuild with the file
		// provider once the registry exists.
		cfg.Registry = e.Registry()
		cfg.Recipes = recipes.NewFileProvider(*recipesDir, cfg.Registry)
		e = env.New(cfg)
	}
	if err := examplecmds.Register(e.Registry(), e.Executor()); err != nil {
		log.Fatal(ctx, err)
	}

	itp := interpreter.New(e.ToRef())
	st, err := itp.Evaluate(ctx, flag.Arg(0), nil)
	if *showLog && st.Metadata != nil {
		for _, entry := range st.Metadata.Log {
			fmt.Fprintf(os.Stderr, "%s %s\n", entry.Level, entry.Message)
		}
	}
	if err != nil {
		log.Error(ctx, err)
		os.Exit(1)
	}
	out, err := st.Data.TryIntoString()
	if err != nil {
		log.Error(ctx, err)
		os.Exit(1)
	}
	fmt.Println(out)
	if st.Metadata != nil && st.Metadata.Status != metadata.StatusReady {
		fmt.Fprintf(os.Stderr, "status: %s\n", st.Metadata.Status)
	}
}
