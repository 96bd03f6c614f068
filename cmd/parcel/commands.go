package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parcel/internal/app/provider"
	"parcel/internal/domain/entity"
	"parcel/internal/infrastructure/walletloader"
)

// tokenFlags describe the transferred asset. An empty token means the native coin,
// an address-like value is a contract, anything else is a registry id.
type tokenFlags struct {
	token    string
	decimals int
}

func (f *tokenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "Token id from the registry or token contract address (empty for native coin)")
	cmd.Flags().IntVar(&f.decimals, "decimals", -1, "Token decimals, looked up when omitted")
}

func (f *tokenFlags) resolve() (entity.Token, error) {
	var t entity.Token
	v := strings.TrimSpace(f.token)
	switch {
	case v == "":
	case strings.HasPrefix(v, "0x") || strings.Contains(v, ":") || len(v) == 48:
		t.ContractAddress = v
	default:
		t.ID = strings.ToLower(v)
	}
	if f.decimals > 255 {
		return entity.Token{}, fmt.Errorf("decimals %d out of range", f.decimals)
	}
	if f.decimals >= 0 {
		t = t.WithDecimals(uint8(f.decimals))
	}
	return t, nil
}

func (a *app) splitCmd() *cobra.Command {
	var (
		walletFile     string
		privateKey     string
		mnemonic       string
		walletVersion  int
		recipientsFile string
		recipients     []string
		amount         string
		tf             tokenFlags
	)
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Distribute an amount evenly from one wallet to many recipients",
		Example: `  parcel split -n bsc --key 0x... --recipients-file data/recipients.txt --amount 1.5
  parcel split -n ton --mainnet --mnemonic "word1 ... word24" --recipient EQ... --token EQCxE6... --amount 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var wallet entity.Wallet
			switch {
			case walletFile != "":
				wallets, err := provider.NewWalletProvider(walletFile, a.log).GetWallets()
				if err != nil {
					return err
				}
				wallet = wallets[0]
			case privateKey != "" || mnemonic != "":
				wallet = entity.Wallet{PrivateKey: privateKey, Mnemonic: mnemonic, Version: walletVersion}
			default:
				return fmt.Errorf("one of --wallet-file, --key or --mnemonic is required")
			}

			if recipientsFile != "" {
				loaded, err := provider.NewRecipientProvider(recipientsFile, a.log).GetAddresses()
				if err != nil {
					return err
				}
				recipients = append(recipients, loaded...)
			}
			token, err := tf.resolve()
			if err != nil {
				return err
			}

			p, err := a.parcel()
			if err != nil {
				return err
			}
			res, err := p.Split(cmd.Context(), entity.SplitRequest{
				Wallet:     wallet,
				Recipients: recipients,
				Token:      token,
				Amount:     amount,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&walletFile, "wallet-file", "", "File with the sender credential (address;secret[;version]), first line is used")
	cmd.Flags().StringVar(&privateKey, "key", "", "Sender private key (hex)")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "Sender mnemonic (TON)")
	cmd.Flags().IntVar(&walletVersion, "wallet-version", 0, "TON wallet contract version (4 or 5)")
	cmd.Flags().StringVar(&recipientsFile, "recipients-file", "", "File with one recipient address per line")
	cmd.Flags().StringSliceVar(&recipients, "recipient", nil, "Recipient address, repeatable")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Total amount in human units")
	_ = cmd.MarkFlagRequired("amount")
	tf.register(cmd)
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var (
		walletsFile string
		receiver    string
		amount      string
		tf          tokenFlags
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Collect funds from many wallets into one receiver",
		Example: `  parcel merge -n bsc --wallets-file data/wallets.txt --receiver 0x...
  parcel merge -n ton --wallets-file data/ton.txt --receiver EQ... --amount 0.5 -m batch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			senders, err := provider.NewWalletProvider(walletsFile, a.log).GetWallets()
			if err != nil {
				return err
			}
			token, err := tf.resolve()
			if err != nil {
				return err
			}
			req := entity.MergeRequest{Senders: senders, Receiver: receiver, Token: token}
			if cmd.Flags().Changed("amount") {
				req.Amount = &amount
			}

			p, err := a.parcel()
			if err != nil {
				return err
			}
			res, err := p.Merge(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&walletsFile, "wallets-file", "", "File with sender credentials (address;secret[;version])")
	cmd.Flags().StringVarP(&receiver, "receiver", "r", "", "Receiver address")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount per sender, whole balance when omitted")
	_ = cmd.MarkFlagRequired("wallets-file")
	_ = cmd.MarkFlagRequired("receiver")
	tf.register(cmd)
	return cmd
}

func (a *app) balancesCmd() *cobra.Command {
	var (
		addressesFile string
		tf            tokenFlags
	)
	cmd := &cobra.Command{
		Use:   "balances [address...]",
		Short: "Show native or token balances of addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses := args
			if addressesFile != "" {
				loaded, err := walletloader.NewAddressFileLoader(addressesFile).GetAddresses()
				if err != nil {
					return err
				}
				addresses = append(addresses, loaded...)
			}
			token, err := tf.resolve()
			if err != nil {
				return err
			}

			p, err := a.parcel()
			if err != nil {
				return err
			}
			res, err := p.Balances(cmd.Context(), entity.BalanceRequest{Addresses: addresses, Token: token})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&addressesFile, "addresses-file", "", "File with one address per line")
	tf.register(cmd)
	return cmd
}

func (a *app) networksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List supported networks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, a.registry.All())
		},
	}
}
