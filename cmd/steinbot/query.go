package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/steinbot/internal/app"
	"github.com/kliewerdaniel/steinbot/internal/core/model"
)

var retrieveFlags struct {
	query string
	limit int
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run the fused vector and graph retrieval for a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			ret := a.Retriever.RetrieveContext(ctx, retrieveFlags.query, retrieveFlags.limit)
			if err := ret.Err(); err != nil {
				cmd.PrintErrln("warning:", err)
			}
			return printJSON(cmd, ret.Results)
		})
	},
}

type searchOptions struct {
	topic     []string
	entity    []string
	author    string
	container string
	docType   string
	similar   string
	related   string
	concepts  string
	limit     int
}

var searchFlags searchOptions

// selected returns the name of the one search mode given on the command line.
func (o searchOptions) selected() (string, error) {
	var modes []string
	for name, set := range map[string]bool{
		"topic":     len(o.topic) > 0,
		"entity":    len(o.entity) > 0,
		"author":    o.author != "",
		"container": o.container != "",
		"type":      o.docType != "",
		"similar":   o.similar != "",
		"related":   o.related != "",
		"concepts":  o.concepts != "",
	} {
		if set {
			modes = append(modes, name)
		}
	}
	switch len(modes) {
	case 1:
		return modes[0], nil
	case 0:
		return "", errors.New("one of --topic, --entity, --author, --container, --type, --similar, --related or --concepts is required")
	}
	return "", fmt.Errorf("only one search mode at a time, got %s", strings.Join(modes, ", "))
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one single-purpose graph search",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := searchFlags.selected()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			s := a.Searcher
			o := searchFlags
			var results []model.Result
			switch mode {
			case "topic":
				results, err = s.SearchByTopic(ctx, o.topic, o.limit)
			case "entity":
				results, err = s.SearchByEntity(ctx, o.entity, o.limit)
			case "author":
				results, err = s.SearchByAuthor(ctx, o.author, o.limit)
			case "container":
				results, err = s.SearchByContainer(ctx, o.container, o.limit)
			case "type":
				results, err = s.SearchByDocumentType(ctx, o.docType, o.limit)
			case "similar":
				results, err = s.FindSimilar(ctx, o.similar, o.limit)
			case "related":
				results, err = s.FindRelated(ctx, o.related, o.limit)
			case "concepts":
				var concepts []string
				concepts, results, err = s.SearchByConcepts(ctx, o.concepts, o.limit)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Concepts: %s\n", strings.Join(concepts, ", "))
				}
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		})
	},
}

var askFlags struct {
	query   string
	history string
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question in the persona's voice and update its thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := parseHistory(askFlags.history)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return printJSON(cmd, a.Controller.GenerateResponse(ctx, askFlags.query, history))
		})
	},
}

// parseHistory decodes a JSON array of {"role", "content"} messages.
func parseHistory(raw string) ([]model.ChatMessage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var history []model.ChatMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("invalid --history: %w", err)
	}
	return history, nil
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveFlags.query, "query", "q", "", "Query text")
	retrieveCmd.Flags().IntVarP(&retrieveFlags.limit, "limit", "l", 5, "Maximum results")
	_ = retrieveCmd.MarkFlagRequired("query")

	f := searchCmd.Flags()
	f.StringSliceVar(&searchFlags.topic, "topic", nil, "Topics (repeatable or comma-separated)")
	f.StringSliceVar(&searchFlags.entity, "entity", nil, "Entities (repeatable or comma-separated)")
	f.StringVar(&searchFlags.author, "author", "", "Author name")
	f.StringVar(&searchFlags.container, "container", "", "Container, e.g. a subreddit")
	f.StringVar(&searchFlags.docType, "type", "", "Document type")
	f.StringVar(&searchFlags.similar, "similar", "", "Document id to find similar documents for")
	f.StringVar(&searchFlags.related, "related", "", "Document id to follow relationships from")
	f.StringVar(&searchFlags.concepts, "concepts", "", "Query to extract concepts from")
	f.IntVarP(&searchFlags.limit, "limit", "l", 0, "Maximum results (default per search)")

	askCmd.Flags().StringVarP(&askFlags.query, "query", "q", "", "Question")
	askCmd.Flags().StringVar(&askFlags.history, "history", "", `Chat history as JSON, e.g. '[{"role":"user","content":"hi"}]'`)
	_ = askCmd.MarkFlagRequired("query")
}
