package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/intuitionamiga/x86sim/engine"
	"github.com/spf13/cobra"
)

func main() {
	var width, height int
	var strict bool

	logger := log.New(os.Stderr, "", log.LstdFlags)

	rootCmd := &cobra.Command{
		Use:   "x86sim",
		Short: "Educational x86-subset execution engine",
	}
	rootCmd.PersistentFlags().IntVar(&width, "width", 64, "display width in pixels")
	rootCmd.PersistentFlags().IntVar(&height, "height", 64, "display height in pixels")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "use strict-x86 compatibility mode instead of educational")

	newEngine := func() *engine.Engine {
		mode := engine.ModeEducational
		if strict {
			mode = engine.ModeStrictX86
		}
		return engine.NewFromConfig(engine.Config{Width: width, Height: height, Mode: mode})
	}

	var maxSteps int
	var breakpoints []int
	runCmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Load a program and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEngine()
			if err := loadProgramFile(e, args[0]); err != nil {
				return err
			}
			for _, bp := range breakpoints {
				e.AddBreakpoint(bp)
			}
			for i := 0; i < maxSteps; i++ {
				if err := e.Run(); err != nil {
					return err
				}
				st := e.GetState()
				if st.Halted {
					logger.Printf("halted at eip=%d", st.EIP)
					break
				}
				logger.Printf("breakpoint hit at eip=%d, continuing", st.EIP)
			}
			printState(e)
			return nil
		},
	}
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 1_000_000, "stop after this many Run() calls (each breakpoint hit ends one call); a program that never halts and hits no breakpoint is not stopped by this limit")
	runCmd.Flags().IntSliceVar(&breakpoints, "break", nil, "EIP values to pause at before executing")

	var steps int
	stepCmd := &cobra.Command{
		Use:   "step [program]",
		Short: "Load a program and single-step it, printing a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEngine()
			if err := loadProgramFile(e, args[0]); err != nil {
				return err
			}
			for i := 0; i < steps; i++ {
				line, err := e.Step()
				if err != nil {
					return err
				}
				if line == -1 {
					logger.Printf("halted")
					break
				}
				fmt.Printf("line %d: eip=%d\n", line, e.GetState().EIP)
			}
			printState(e)
			return nil
		},
	}
	stepCmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of instructions to execute")

	execCmd := &cobra.Command{
		Use:   "exec [mnemonic] [operands...]",
		Short: "Execute a single instruction against a fresh engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEngine()
			mnemonic := strings.ToUpper(args[0])
			var operands []string
			if len(args) > 1 {
				operands = strings.Split(strings.Join(args[1:], " "), ",")
				for i := range operands {
					operands[i] = strings.TrimSpace(operands[i])
				}
			}
			if err := e.ExecuteInstruction(mnemonic, operands); err != nil {
				return err
			}
			printState(e)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, stepCmd, execCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadProgramFile(e *engine.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening program: %w", err)
	}
	defer f.Close()

	instrs, labels, err := parseProgram(f)
	if err != nil {
		return err
	}
	e.LoadInstructions(instrs, labels)
	return nil
}

func printState(e *engine.Engine) {
	st := e.GetState()
	fmt.Printf("eip=%d halted=%v callDepth=%d\n", st.EIP, st.Halted, st.CallStackDepth)
	for _, name := range []string{"EAX", "EBX", "ECX", "EDX", "ESP", "EBP", "ESI", "EDI"} {
		fmt.Printf("  %s = 0x%08X\n", name, st.Registers[name])
	}
	fmt.Printf("  flags = 0x%04X\n", st.Flags)
	if out := e.GetConsoleOutput(); len(out) > 0 {
		fmt.Printf("console: %s\n", string(out))
	}
}
