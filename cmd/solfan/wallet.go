package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/prompt"
	"github.com/Fantasim/solfan/internal/wallet"
	"github.com/Fantasim/solfan/internal/workflow"
)

func newCreateWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-wallet",
		Short: "Create a main wallet from a random keypair or a BIP-39 mnemonic",
		RunE:  runCreateWallet,
	}
	cmd.Flags().Bool("mnemonic", false, "derive from a mnemonic typed at the prompt")
	cmd.Flags().String("mnemonic-file", "", "derive from the mnemonic stored in this file")
	cmd.Flags().Bool("new-mnemonic", false, "generate a 24-word mnemonic, print it, and derive from it")
	cmd.Flags().Uint32("index", 0, "account index of the derivation path m/44'/501'/index'/0'")
	cmd.MarkFlagsMutuallyExclusive("mnemonic", "mnemonic-file", "new-mnemonic")
	return cmd
}

func runCreateWallet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.openOplog(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	index, _ := cmd.Flags().GetUint32("index")
	if cmd.Flags().Changed("index") && !usesMnemonic(cmd) {
		return fmt.Errorf("%w: --index needs a mnemonic source", config.ErrInvalidConfig)
	}

	mnemonic, err := mnemonicFromFlags(cmd, func(phrase string) {
		fmt.Fprintln(out, prompt.Step("NEW MNEMONIC, WRITE IT DOWN"))
		fmt.Fprintln(out, phrase)
	})
	if err != nil {
		return err
	}

	wf := workflow.New(a.cfg, workflow.Deps{Store: a.store, Log: a.oplog})
	rec, path, err := wf.CreateMainWallet(mnemonic, index)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, prompt.Success("main wallet created"))
	fmt.Fprintf(out, "Public key: %s\nFile:       %s\n", rec.PublicKey, path)
	return nil
}

func usesMnemonic(cmd *cobra.Command) bool {
	for _, f := range []string{"mnemonic", "mnemonic-file", "new-mnemonic"} {
		if cmd.Flags().Changed(f) {
			return true
		}
	}
	return false
}

// mnemonicFromFlags returns the phrase selected by the flags, or "" for a
// random keypair. show receives a freshly generated phrase.
func mnemonicFromFlags(cmd *cobra.Command, show func(string)) (string, error) {
	if path, _ := cmd.Flags().GetString("mnemonic-file"); path != "" {
		return wallet.ReadMnemonicFromFile(path)
	}
	if gen, _ := cmd.Flags().GetBool("new-mnemonic"); gen {
		phrase, err := wallet.NewMnemonic(24)
		if err != nil {
			return "", err
		}
		show(phrase)
		return phrase, nil
	}
	if ask, _ := cmd.Flags().GetBool("mnemonic"); ask {
		return prompt.AskMnemonic()
	}
	return "", nil
}
