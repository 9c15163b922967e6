package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/ceyhunalp/raffle_code/raffle"
	"github.com/ceyhunalp/raffle_code/sys"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/darc"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
	cli "gopkg.in/urfave/cli.v1"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "raffle"
	cliApp.Usage = "interact with a raffle unit"
	cliApp.Version = "0.1"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "roster, r",
			Usage: "roster group definition `file`",
		},
	}
	cliApp.Commands = []cli.Command{
		{
			Name:   "setup",
			Usage:  "initialize the raffle unit",
			Action: cmdSetup,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "unit, u",
					Usage: "unit configuration `file`",
				},
			},
		},
		{
			Name:      "notify",
			Usage:     "report an asset deposit to the unit",
			ArgsUsage: "<custodian> <depositor> <owner> <asset> <terms>",
			Action:    cmdNotify,
		},
		{
			Name:      "join",
			Usage:     "buy a ticket in a raffle",
			ArgsUsage: "<raffle-id> <payment>",
			Action:    cmdJoin,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "key, k",
					Usage: "participant key `file`, created when missing",
					Value: "raffle.key",
				},
			},
		},
		{
			Name:   "list",
			Usage:  "list the open raffles",
			Action: cmdList,
		},
		{
			Name:      "get",
			Usage:     "print one raffle record",
			ArgsUsage: "<raffle-id>",
			Action:    cmdGet,
		},
	}
	log.ErrFatal(cliApp.Run(os.Args))
}

func readRoster(c *cli.Context) (*onet.Roster, error) {
	name := c.GlobalString("roster")
	if name == "" {
		return nil, xerrors.New("roster file is required (--roster)")
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, xerrors.Errorf("opening roster file: %v", err)
	}
	defer f.Close()
	group, err := app.ReadGroupDescToml(f)
	if err != nil {
		return nil, xerrors.Errorf("reading roster file: %v", err)
	}
	if len(group.Roster.List) == 0 {
		return nil, xerrors.Errorf("empty roster in %s", name)
	}
	return group.Roster, nil
}

func cmdSetup(c *cli.Context) error {
	roster, err := readRoster(c)
	if err != nil {
		return err
	}
	cfg, err := sys.PrepareUnitConfig(roster, c.String("unit"))
	if err != nil {
		return err
	}
	cl := raffle.NewClient(roster)
	reply, err := cl.InitUnit(cfg, nil, nil, darc.Signer{}, nil, "")
	if err != nil {
		return err
	}
	fmt.Println("Genesis:", hex.EncodeToString(reply.Genesis))
	return nil
}

func cmdNotify(c *cli.Context) error {
	if c.NArg() != 5 {
		return xerrors.New("usage: notify <custodian> <depositor> <owner> <asset> <terms>")
	}
	roster, err := readRoster(c)
	if err != nil {
		return err
	}
	cl := raffle.NewClient(roster)
	args := c.Args()
	reply, err := cl.NotifyDeposit(args[0], args[1], args[2], args[3], args[4], nil)
	if err != nil {
		return err
	}
	if reply.ReturnAsset {
		fmt.Println("Deposit rejected, asset goes back to the depositor")
		return nil
	}
	fmt.Println("Opened raffle", reply.RaffleID)
	return nil
}

func cmdJoin(c *cli.Context) error {
	if c.NArg() != 2 {
		return xerrors.New("usage: join <raffle-id> <payment>")
	}
	roster, err := readRoster(c)
	if err != nil {
		return err
	}
	var id, payment uint64
	if _, err := fmt.Sscanf(c.Args()[0], "%d", &id); err != nil {
		return xerrors.Errorf("invalid raffle id: %v", err)
	}
	if _, err := fmt.Sscanf(c.Args()[1], "%d", &payment); err != nil {
		return xerrors.Errorf("invalid payment: %v", err)
	}
	signer, err := loadSigner(c.String("key"))
	if err != nil {
		return err
	}
	cl := raffle.NewClient(roster)
	if _, err := cl.Join(id, signer, payment, nil); err != nil {
		return err
	}
	identity, err := raffle.Identity(signer)
	if err != nil {
		return err
	}
	fmt.Println("Joined raffle", id, "as", identity)
	return nil
}

func cmdList(c *cli.Context) error {
	roster, err := readRoster(c)
	if err != nil {
		return err
	}
	cl := raffle.NewClient(roster)
	open, err := cl.ListOpen()
	if err != nil {
		return err
	}
	for _, or := range open {
		fmt.Printf("%d: asset %s, %d/%d tickets at %d\n", or.ID,
			or.Raffle.Prize.AssetID, len(or.Raffle.Participants),
			or.Raffle.Capacity, or.Raffle.TicketPrice)
	}
	return nil
}

func cmdGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return xerrors.New("usage: get <raffle-id>")
	}
	roster, err := readRoster(c)
	if err != nil {
		return err
	}
	var id uint64
	if _, err := fmt.Sscanf(c.Args()[0], "%d", &id); err != nil {
		return xerrors.Errorf("invalid raffle id: %v", err)
	}
	cl := raffle.NewClient(roster)
	raf, err := cl.GetRaffle(id)
	if err != nil {
		return err
	}
	fmt.Printf("Raffle %d (%s)\n", id, raf.Status)
	fmt.Println("  creator:", raf.Creator)
	fmt.Printf("  prize: %s at %s\n", raf.Prize.AssetID, raf.Prize.Custodian)
	fmt.Printf("  tickets: %d/%d at %d\n", len(raf.Participants), raf.Capacity,
		raf.TicketPrice)
	for _, p := range raf.Participants {
		fmt.Println("  participant:", p)
	}
	if raf.HasWinner() {
		fmt.Println("  winner:", raf.Winner)
	}
	return nil
}

// loadSigner reads the participant key from disk, creating a fresh one on
// first use so repeated joins keep the same identity.
func loadSigner(name string) (darc.Signer, error) {
	buf, err := ioutil.ReadFile(name)
	if os.IsNotExist(err) {
		signer := darc.NewSignerEd25519(nil, nil)
		secret, err := encoding.ScalarToStringHex(cothority.Suite, signer.Ed25519.Secret)
		if err != nil {
			return darc.Signer{}, xerrors.Errorf("encoding key: %v", err)
		}
		if err := ioutil.WriteFile(name, []byte(secret), 0600); err != nil {
			return darc.Signer{}, xerrors.Errorf("storing key: %v", err)
		}
		return signer, nil
	}
	if err != nil {
		return darc.Signer{}, xerrors.Errorf("reading key: %v", err)
	}
	secret, err := encoding.StringHexToScalar(cothority.Suite, string(buf))
	if err != nil {
		return darc.Signer{}, xerrors.Errorf("decoding key: %v", err)
	}
	point := cothority.Suite.Point().Mul(secret, nil)
	return darc.NewSignerEd25519(point, secret), nil
}
