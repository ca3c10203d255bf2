package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) recomputeAverages() error {
	changed, err := cli.gradeSvc.RecomputeAverages(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d average(s) updated\n", changed)
	return nil
}
