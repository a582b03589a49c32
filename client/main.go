package main

import (
	"fmt"
	"os"

	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "lotteryctl"
	app.Usage = "run and drive randomness lotteries on a development chain"
	app.Version = "0.1"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug level from 1 (major operations) to 5 (very noisy)",
		},
		cli.StringFlag{
			Name:  "roster, r",
			Value: "roster.toml",
			Usage: "group definition of the node",
		},
	}
	app.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.GlobalInt("debug"))
		return nil
	}
	lotteryFlag := cli.StringFlag{
		Name:  "lottery, l",
		Usage: "address of the lottery",
	}
	app.Commands = []cli.Command{
		{
			Name:  "simulate",
			Usage: "run lottery rounds on an in-process chain",
			Flags: []cli.Flag{
				cli.Int64Flag{Name: "chain", Value: 31337, Usage: "chain id"},
				cli.IntFlag{Name: "players", Value: 3, Usage: "players per round"},
				cli.IntFlag{Name: "rounds", Value: 1, Usage: "number of rounds"},
				cli.StringFlag{Name: "networks", Usage: "TOML network configuration"},
			},
			Action: simulateCmd,
		},
		{
			Name:  "init",
			Usage: "start a development chain on the node",
			Flags: []cli.Flag{
				cli.Int64Flag{Name: "chain", Value: 31337, Usage: "chain id"},
				cli.StringFlag{Name: "db", Usage: "database path on the node"},
				cli.StringFlag{Name: "networks", Usage: "TOML network configuration"},
				cli.Int64Flag{Name: "keeper", Value: 1000, Usage: "keeper interval in ms, 0 disables it"},
				cli.Int64Flag{Name: "delay", Usage: "fulfillment delay in ms"},
				cli.BoolFlag{Name: "manual-fulfill", Usage: "only fulfill on request"},
				cli.BoolFlag{Name: "manual-time", Usage: "use a clock moved by the time command"},
			},
			Action: initCmd,
		},
		{
			Name:   "deploy",
			Usage:  "deploy a lottery with a funded subscription",
			Action: deployCmd,
		},
		{
			Name:  "fund",
			Usage: "credit an account with ether",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "address, a", Usage: "account address"},
				cli.StringFlag{Name: "key, k", Usage: "private key file of the account"},
				cli.StringFlag{Name: "amount", Value: "1", Usage: "amount in ether"},
			},
			Action: fundCmd,
		},
		{
			Name:  "enter",
			Usage: "pay the entrance fee",
			Flags: []cli.Flag{
				lotteryFlag,
				cli.StringFlag{Name: "key, k", Usage: "private key file of the player"},
				cli.StringFlag{Name: "value", Usage: "amount in ether, defaults to the entrance fee"},
			},
			Action: enterCmd,
		},
		{
			Name:   "check",
			Usage:  "show whether the lottery needs an upkeep",
			Flags:  []cli.Flag{lotteryFlag},
			Action: checkCmd,
		},
		{
			Name:   "perform",
			Usage:  "close the round and request randomness",
			Flags:  []cli.Flag{lotteryFlag},
			Action: performCmd,
		},
		{
			Name:  "fulfill",
			Usage: "answer a pending randomness request",
			Flags: []cli.Flag{
				lotteryFlag,
				cli.Uint64Flag{Name: "request", Usage: "request id"},
			},
			Action: fulfillCmd,
		},
		{
			Name:   "state",
			Usage:  "print the lottery state",
			Flags:  []cli.Flag{lotteryFlag},
			Action: stateCmd,
		},
		{
			Name:  "time",
			Usage: "move the manual clock forward",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "seconds, s", Usage: "seconds to add"},
			},
			Action: timeCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
