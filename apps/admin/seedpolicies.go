package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/policy"
)

// seedPolicies installs the built-in catalog; entries whose code is already
// taken are left untouched.
func (cli *commandLine) seedPolicies() error {
	ctx := context.Background()

	var installed, skipped int
	for _, np := range policy.Seed {
		if err := cli.policySvc.CheckCodeUniqueness(ctx, np.Code); err != nil {
			if _, ok := errors.Cause(err).(*core.ValidationError); ok {
				skipped++
				continue
			}
			return err
		}
		if _, err := cli.policySvc.Create(ctx, np); err != nil {
			return err
		}
		installed++
	}
	fmt.Printf("policies installed: %d, skipped: %d\n", installed, skipped)
	return nil
}
