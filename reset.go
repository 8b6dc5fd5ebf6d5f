package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func resetState(cmd *cobra.Command, args []string) error {
	config, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	factory := NewSessionFactory(ctx, config)

	db, err := factory.Database()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	state, err := factory.StateStore(db)
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Print("⚠️  The next sync will re-send every Exchange event. Continue? (y/N): ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Reset cancelled")
			return nil
		}
	}

	if err := state.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("✅ Sync state cleared")
	return nil
}
