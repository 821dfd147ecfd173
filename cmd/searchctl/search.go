package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/search-client/pkg/registry"
	"github.com/Sternrassler/search-client/pkg/retry"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type searchOptions struct {
	top        int
	skip       int
	lang       string
	resultType string
	params     []string
	asJSON     bool
	noRetry    bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <engine> <terms...>",
		Short: "Run a search and print the results",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd.OutOrStdout(), root, opts, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().IntVar(&opts.top, "top", search.DefaultTop, "Number of results to return")
	cmd.Flags().IntVar(&opts.skip, "skip", 0, "Number of results to skip")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "Result language")
	cmd.Flags().StringVar(&opts.resultType, "type", "", "Result type (web, image, video)")
	cmd.Flags().StringArrayVar(&opts.params, "param", nil, "Engine parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the response as JSON")
	cmd.Flags().BoolVar(&opts.noRetry, "no-retry", false, "Fail on the first transient error")
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, root *rootOptions, opts *searchOptions, name, terms string) error {
	cfg := root.cfg

	var client redis.UniversalClient
	if cfg.CacheEnabled() {
		rc := cfg.NewRedisClient()
		defer rc.Close()
		client = rc
	}

	engineOpts, err := cfg.EngineOptions(name, client)
	if err != nil {
		return err
	}
	extra, err := parseParams(opts.params)
	if err != nil {
		return err
	}
	if engineOpts.Params == nil {
		engineOpts.Params = search.Params{}
	}
	for k, v := range extra {
		engineOpts.Params[k] = v
	}

	e, err := registry.Builtin().Create(ctx, name, engineOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(context.Background()); err != nil {
			log.Warn().Err(err).Str("engine", name).Msg("Failed to close engine")
		}
	}()

	q, err := search.NewQuery(terms,
		search.WithTop(opts.top),
		search.WithSkip(opts.skip),
		search.WithLang(opts.lang),
		search.WithResultType(opts.resultType),
	)
	if err != nil {
		return err
	}

	retryCfg := retry.DefaultConfig()
	if opts.noRetry {
		retryCfg.MaxAttempts = 1
	}
	resp, err := retry.Search(ctx, e, q, retryCfg)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(out, resp)
	return nil
}

// parseParams turns key=value flags into engine params. Values are read
// as YAML scalars, so "50" is an int and "true" a bool.
func parseParams(raw []string) (search.Params, error) {
	params := search.Params{}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", kv)
		}
		var decoded any
		if err := yaml.Unmarshal([]byte(value), &decoded); err != nil || decoded == nil {
			decoded = value
		}
		v, err := search.ValueOf(decoded)
		if err != nil {
			v = search.String(value)
		}
		params[key] = v
	}
	return params, nil
}

func printResponse(out io.Writer, resp *search.Response) {
	fmt.Fprintf(out, "%d results for %q\n", resp.ResultTotal, resp.QueryTerms)
	for i, res := range resp.All() {
		rank := res.Rank
		if !res.Ranked() {
			rank = i + 1
		}
		fmt.Fprintf(out, "\n%3d. %s\n     %s\n", rank, res.Title, res.URL)
		if res.Summary != "" {
			fmt.Fprintf(out, "     %s\n", res.Summary)
		}
	}
}
