// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/gavel"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	demoTokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000070c3")
	demoGovernorAddr = common.HexToAddress("0x0000000000000000000000000000000000009000")
	demoDeployer     = common.HexToAddress("0x000000000000000000000000000000000000de91")
	demoVoter        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	demoRecipient    = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// demoEther returns n whole 18-decimal tokens
func demoEther(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(
		uint256.NewInt(n),
		uint256.NewInt(1_000_000_000_000_000_000),
	)
}

// RunDemo deploys an in-memory governance instance and walks a standard and
// a quadratic proposal through their lifecycles, writing a summary to out
func RunDemo(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	params := governance.DefaultParams()
	params.ProposalThreshold = demoEther(100)
	params.QuadraticUnit = demoEther(1)
	params.GovernorAddress = demoGovernorAddr
	params.Admin = demoDeployer
	n, err := gavel.New(gavel.NewConfig(
		gavel.WithLogger(logger),
		gavel.WithGovernanceParams(params),
		gavel.WithToken(demoTokenAddr, "Gavel Governance Token", "GVL"),
		gavel.WithGenesis([]token.Allocation{
			{Address: demoDeployer, Amount: demoEther(1_000_000), Delegate: &demoDeployer},
			{Address: demoVoter, Amount: demoEther(50_000), Delegate: &demoVoter},
			{Address: demoGovernorAddr, Amount: demoEther(10_000)},
		}),
	))
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return errors.Join(err, n.Stop())
	}
	err = runDemoScenario(ctx, n, params, out)
	return errors.Join(err, n.Stop())
}

func runDemoScenario(
	ctx context.Context,
	n *gavel.Node,
	params governance.Params,
	out io.Writer,
) error {
	seq := n.Sequencer()
	mine := func(count uint64) error {
		return seq.Do(ctx, func(_ *governance.Governor) error {
			_, err := n.Clock().Advance(count)
			return err
		})
	}
	printf := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...) //nolint:errcheck
	}
	printf("token %s deployed at %s", n.Ledger().Symbol(), demoTokenAddr.Hex())
	printf("governor account %s, current block %d", params.GovernorAddress.Hex(), n.Clock().Height())

	// Standard proposal paying the recipient from the governor treasury
	payload, err := token.EncodeTransfer(demoRecipient, demoEther(1_000))
	if err != nil {
		return err
	}
	actions := []governance.Action{{Target: demoTokenAddr, Payload: payload}}
	description := "Grant 1000 GVL to the recipient"
	var standardID governance.ProposalID
	if err := seq.Do(ctx, func(gov *governance.Governor) error {
		var err error
		standardID, err = gov.Propose(ctx, demoDeployer, actions, description)
		return err
	}); err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	printf("proposal %s created", standardID.Hex())
	if err := mine(params.VotingDelay + 1); err != nil {
		return err
	}
	if err := seq.Do(ctx, func(gov *governance.Governor) error {
		weight, err := gov.CastVoteWithReason(ctx, demoDeployer, standardID, governance.SupportFor, "treasury grant")
		if err != nil {
			return err
		}
		printf("deployer voted For with weight %s", weight.Dec())
		weight, err = gov.CastVote(ctx, demoVoter, standardID, governance.SupportAgainst)
		if err != nil {
			return err
		}
		printf("voter voted Against with weight %s", weight.Dec())
		return nil
	}); err != nil {
		return fmt.Errorf("vote: %w", err)
	}
	if err := mine(params.VotingPeriod + 1); err != nil {
		return err
	}
	if err := seq.Do(ctx, func(gov *governance.Governor) error {
		state, err := gov.State(standardID)
		if err != nil {
			return err
		}
		printf("proposal %s is %s", standardID.Hex(), state)
		if _, err := gov.ExecuteActions(ctx, actions, description); err != nil {
			return err
		}
		state, err = gov.State(standardID)
		if err != nil {
			return err
		}
		printf("proposal %s is %s", standardID.Hex(), state)
		return nil
	}); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	balance, err := n.Ledger().BalanceOf(demoRecipient)
	if err != nil {
		return err
	}
	printf("recipient balance %s", balance.Dec())

	// Quadratic proposal with no actions
	var quadraticID governance.ProposalID
	if err := seq.Do(ctx, func(gov *governance.Governor) error {
		var err error
		quadraticID, err = gov.ProposeWithType(ctx, demoVoter, nil, "Signal: adopt the roadmap", governance.VotingModeQuadratic)
		return err
	}); err != nil {
		return fmt.Errorf("propose quadratic: %w", err)
	}
	if err := mine(params.VotingDelay + 1); err != nil {
		return err
	}
	if err := seq.Do(ctx, func(gov *governance.Governor) error {
		weight, err := gov.CastQuadraticVote(ctx, demoVoter, quadraticID, governance.SupportFor, 200)
		if err != nil {
			return err
		}
		printf("voter cast 200 quadratic votes for weight %s", weight.Dec())
		_, err = gov.CastQuadraticVote(ctx, demoDeployer, quadraticID, governance.SupportAgainst, 2_000)
		printf("deployer casting 2000 quadratic votes: %s", governance.Reason(err))
		if !errors.Is(err, governance.ErrInsufficientPower) {
			return fmt.Errorf("expected insufficient power, got: %w", err)
		}
		weight, err = gov.CastQuadraticVote(ctx, demoDeployer, quadraticID, governance.SupportAgainst, 100)
		if err != nil {
			return err
		}
		printf("deployer cast 100 quadratic votes for weight %s", weight.Dec())
		return nil
	}); err != nil {
		return fmt.Errorf("quadratic vote: %w", err)
	}
	if err := mine(params.VotingPeriod + 1); err != nil {
		return err
	}
	return seq.Do(ctx, func(gov *governance.Governor) error {
		state, err := gov.State(quadraticID)
		if err != nil {
			return err
		}
		tally, err := gov.Tally(quadraticID)
		if err != nil {
			return err
		}
		printf(
			"proposal %s is %s (for %s, against %s)",
			quadraticID.Hex(),
			state,
			tally.For.Dec(),
			tally.Against.Dec(),
		)
		events, err := gov.Events(1, 0)
		if err != nil {
			return err
		}
		printf("event log holds %d entries", len(events))
		return nil
	})
}
