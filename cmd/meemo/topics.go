package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szaher/meemo/internal/config"
	"github.com/szaher/meemo/internal/curriculum"
)

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "Print the curriculum that sessions will be taught",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			var cur curriculum.Curriculum
			if cfg.Course.File != "" {
				cur, err = curriculum.LoadFile(cfg.Course.File)
				if err != nil {
					return err
				}
			} else {
				cur = curriculum.Builtin(cfg.Course.Topic)
			}

			fmt.Printf("Course: %s\n\n", cur.Course)
			for i, topic := range cur.Topics {
				fmt.Printf("  %2d. %s\n", i+1, topic)
			}
			return nil
		},
	}
}
