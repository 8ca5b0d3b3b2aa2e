package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kliewerdaniel/steinbot/internal/core/persona"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Inspect or reset the persona and its thresholds",
}

var personaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored persona",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersona(cmd, func(s persona.Store) (persona.Config, error) {
			return s.Load(cmd.Context())
		})
	},
}

var personaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the stored persona with the domain defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPersona(cmd, func(s persona.Store) (persona.Config, error) {
			return s.Reset(cmd.Context())
		})
	},
}

// withPersona opens only the persona store; no graph or model is needed.
func withPersona(cmd *cobra.Command, fn func(persona.Store) (persona.Config, error)) error {
	store, err := persona.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	p, err := fn(store)
	if err != nil {
		return err
	}
	data, err := persona.Encode(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func init() {
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaResetCmd)
}
