package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"treeview-ai/application/interpreter"
	"treeview-ai/domain/operations"
	pkgerrors "treeview-ai/pkg/errors"
)

type interpretedOp struct {
	Kind operations.Kind      `json:"kind"`
	Op   operations.Operation `json:"op"`
}

type interpretOutput struct {
	PlainText     bool                  `json:"plain_text"`
	Authoritative bool                  `json:"authoritative"`
	Text          string                `json:"text,omitempty"`
	Operations    []interpretedOp       `json:"operations"`
	Dropped       []interpreter.Dropped `json:"dropped,omitempty"`
}

func newInterpretCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "interpret [file]",
		Short: "Print the operations an assistant reply would apply",
		Long: `interpret reads a raw assistant reply from file, or from stdin when no
file is given, and prints the normalized operations as JSON. A reply
that carries no structured payload is reported as plain text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read reply: %w", err)
			}

			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			out, err := interpretReply(interpreter.New(logger), string(data))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log interpreter decisions to stderr")
	return cmd
}

func interpretReply(interp *interpreter.Interpreter, reply string) (interpretOutput, error) {
	batch, err := interp.Parse(reply)
	if err != nil && !pkgerrors.IsMalformed(err) {
		return interpretOutput{}, err
	}
	out := interpretOutput{
		PlainText:     err != nil,
		Authoritative: batch.Authoritative,
		Text:          batch.Text,
		Operations:    make([]interpretedOp, 0, len(batch.Operations)),
		Dropped:       batch.Dropped,
	}
	for _, op := range batch.Operations {
		out.Operations = append(out.Operations, interpretedOp{Kind: op.Kind(), Op: op})
	}
	return out, nil
}
