// Command wasm2jar is a thin harness over internal/jvm: it exercises the
// class serializer directly by emitting a small demonstration class, since
// the engine itself takes class-graph and instruction-builder calls, not a
// Wasm binary, as input (no Wasm decoding front end is in scope). It is
// useful for smoke-testing the library end to end and for producing a
// `.class` file a real JVM can verify and run.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	jvmgen "github.com/harpocrates/wasm2jar/internal/jvm"
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
)

// version is a build-time constant in lieu of a real release process; this
// harness has no CI-driven version stamping to hook into.
const version = "0.0.1"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "wasm2jar",
		Short:         "A JVM class file emitter",
		Long:          "wasm2jar's JVM bytecode emission engine, exercised directly from the command line.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newEmitDemoCmd(&verbose))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wasm2jar %s\n", version)
		},
	}
}

func newEmitDemoCmd(verbose *bool) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "emit-demo",
		Short: "Writes a small demonstration .class file built directly with the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			classBytes, err := buildSumClass()
			if err != nil {
				return fmt.Errorf("building demo class: %w", err)
			}
			if err := os.WriteFile(out, classBytes, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			if *verbose {
				log.SetOutput(cmd.OutOrStdout())
				log.Printf("wrote %d bytes to %s", len(classBytes), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "Sum.class", "Path to write the generated class file to.")
	return cmd
}

// buildSumClass assembles a single public final class, generated/Sum, with
// one method: `public static int sum(int, int)` returning the sum of its
// two arguments. It exists purely to drive every stage of the serializer
// pipeline (class graph, code builder, jump-free verification, class
// serialization) against a real, tiny, JVM-verifiable program.
func buildSumClass() ([]byte, error) {
	session, err := jvmgen.NewSession()
	if err != nil {
		return nil, err
	}

	classData, err := session.Graph.AddClass(classgraph.ClassInput{
		Name:        "generated/Sum",
		Superclass:  session.Java.Object,
		AccessFlags: 0x0031, // public, final, super
	})
	if err != nil {
		return nil, err
	}

	intType := desc.BaseFieldType(desc.Int)
	sumDescriptor := desc.MethodDescriptor{
		Parameters: []desc.FieldType{intType, intType},
		Return:     &intType,
	}
	methodData := session.Graph.AddMethod(classData, "sum", sumDescriptor, 0x0009 /* public static */, true)

	builder, err := session.NewMethodBuilder(methodData)
	if err != nil {
		return nil, err
	}
	if err := builder.PushInstruction(insn.UnresolvedInstruction{Op: insn.ILoad, VarIndex: 0}); err != nil {
		return nil, err
	}
	if err := builder.PushInstruction(insn.UnresolvedInstruction{Op: insn.ILoad, VarIndex: 1}); err != nil {
		return nil, err
	}
	if err := builder.PushInstruction(insn.UnresolvedInstruction{Op: insn.IAdd}); err != nil {
		return nil, err
	}
	if err := builder.PushBranchInstruction(insn.BranchInstruction{Op: insn.IReturn}); err != nil {
		return nil, err
	}
	methodCode, err := builder.Result()
	if err != nil {
		return nil, err
	}

	classFile := session.NewClass(classData)
	if err := classFile.AddMethod(methodData, methodCode); err != nil {
		return nil, err
	}
	return classFile.Bytes()
}
