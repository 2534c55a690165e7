package session

import (
	"bytes"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/metrics"
	"github.com/apex-sandbox/sandboxd/internal/protocol"
	"github.com/apex-sandbox/sandboxd/internal/runner"
)

const (
	pollInterval = 100 * time.Millisecond
	readChunkSize = 4096
)

type waitResult struct {
	exitCode int
	err      error
}

// loopOutcome distinguishes a normal (possibly timed-out) verdict from a
// client disconnect, which spec.md §7 requires surfacing as a terminal
// ERROR message, not an EXECUTION_RESULT.
type loopOutcome struct {
	result       protocol.Result
	disconnected bool
}

// runInteractiveLoop multiplexes the child's merged stdout+stderr and the
// client socket until the child exits or the wall clock expires or the
// client disconnects. It translates the original's 100ms-poll-plus-reap
// loop into goroutine-fed channels selected on a timer: a reader goroutine
// per stream plus a Wait() goroutine stand in for poll()'s readiness
// signaling and waitpid(WNOHANG), which lets this loop react to an event
// the instant it's available instead of only every 100ms, while the
// timeout branch of the select still drives the silence heuristic on the
// same cadence as the original.
func (s *Session) runInteractiveLoop(child *runner.Child) loopOutcome {
	s.logger.Debug("entering main execution loop")

	var outputBuf bytes.Buffer

	stdoutCh := make(chan []byte, 64)
	go pump(child.Stdout, stdoutCh, readChunkSize)

	clientCh := make(chan []byte, 64)
	clientDone := make(chan struct{})
	go pumpClient(s.conn, clientCh, clientDone, readChunkSize)

	doneCh := make(chan waitResult, 1)
	go func() {
		code, err := child.Wait()
		doneCh <- waitResult{exitCode: code, err: err}
	}()

	s.lastActivity = time.Now()
	s.hasOutput = false
	s.waitingForInput = false
	s.inputSent = false
	s.silenceCycles = 0
	s.currentLine = nil

	timedOut := false
	killed := false

	for {
		elapsed := time.Since(s.startTime)
		if !killed && elapsed > time.Duration(s.timeLimitSec)*time.Second {
			s.logger.Debug("time limit exceeded, killing process group", zap.Int("pid", child.Pid))
			if err := runner.Kill(child.Pid); err != nil {
				s.logger.Warn("failed to kill child process group", zap.Error(err))
			}
			timedOut = true
			killed = true
		}

		select {
		case chunk, ok := <-stdoutCh:
			if !ok {
				stdoutCh = nil
				continue
			}
			s.handleChildOutput(chunk, &outputBuf)

		case chunk, ok := <-clientCh:
			if !ok {
				clientCh = nil
				continue
			}
			s.handleClientInput(chunk, child.Stdin)

		case <-clientDone:
			clientDone = nil
			s.logger.Debug("client disconnected during input")
			if err := runner.Kill(child.Pid); err != nil {
				s.logger.Debug("failed to kill child after client disconnect", zap.Error(err))
			}
			return loopOutcome{disconnected: true}

		case wr := <-doneCh:
			// Wait can return before the stdout pump has delivered the
			// child's final chunks; forward them before the verdict.
			for stdoutCh != nil {
				select {
				case chunk, ok := <-stdoutCh:
					if !ok {
						stdoutCh = nil
						continue
					}
					s.handleChildOutput(chunk, &outputBuf)
				case <-time.After(pollInterval):
					stdoutCh = nil
				}
			}
			exitCode := wr.exitCode
			if wr.err != nil {
				exitCode = -1
			}
			s.logger.Debug("process completed", zap.Int("exit_code", exitCode))
			child.Stdin.Close()
			return loopOutcome{result: buildVerdict(exitCode, outputBuf.String(), "", timedOut, false,
				time.Since(s.startTime), s.timeLimitSec, s.memoryLimitMB)}

		case <-time.After(pollInterval):
			s.evaluateSilence()
		}
	}
}

// handleChildOutput applies the per-byte current_line tracking, emits the
// chunk verbatim as an OUTPUT message, and refreshes the silence
// accumulators.
func (s *Session) handleChildOutput(chunk []byte, outputBuf *bytes.Buffer) {
	outputBuf.Write(chunk)
	s.lastActivity = time.Now()
	s.hasOutput = true
	s.silenceCycles = 0

	for _, b := range chunk {
		if b == '\n' || b == '\r' {
			s.currentLine = s.currentLine[:0]
		} else {
			s.currentLine = append(s.currentLine, b)
		}
	}

	s.logger.Debug("program output", zap.Int("bytes", len(chunk)))
	s.send(protocol.Output(string(chunk)))

	if s.inputSent {
		s.inputSent = false
	}
}

// handleClientInput forwards a client chunk to the child's stdin with a
// trailing newline, as a single write.
func (s *Session) handleClientInput(chunk []byte, stdin interface{ Write([]byte) (int, error) }) {
	s.logger.Debug("received input", zap.Int("bytes", len(chunk)))

	toSend := append(append([]byte(nil), chunk...), '\n')
	if _, err := stdin.Write(toSend); err != nil {
		s.logger.Debug("failed writing to child stdin", zap.Error(err))
	}

	s.inputSent = true
	s.waitingForInput = false
	s.lastActivity = time.Now()
	s.silenceCycles = 0
}

// evaluateSilence implements the input-request heuristic exactly per its
// contract: only active when not already waiting, not mid-forward, and
// some output has been seen.
func (s *Session) evaluateSilence() {
	if s.waitingForInput || s.inputSent || !s.hasOutput {
		return
	}

	silence := time.Since(s.lastActivity)
	if silence <= silenceThreshold*time.Millisecond {
		return
	}
	s.silenceCycles++

	line := string(s.currentLine)
	shouldPrompt := false
	prompt := "Program is waiting for input..."

	if explicitPrompt(line) && s.silenceCycles >= explicitPromptCycles {
		shouldPrompt = true
		prompt = "Program expects input: " + line
	} else if s.silenceCycles >= genericPromptCycles {
		shouldPrompt = true
	}

	if !shouldPrompt {
		return
	}

	s.logger.Debug("detected input request",
		zap.Int64("silence_ms", silence.Milliseconds()),
		zap.Int("cycles", s.silenceCycles),
	)
	s.send(protocol.InputRequired(prompt))
	metrics.Get().InputPromptsTotal.Inc()

	s.waitingForInput = true
	s.inputSent = false
	s.currentLine = s.currentLine[:0]
	s.silenceCycles = 0
}

// pump reads chunkSize-sized reads from r and forwards each non-empty read
// on ch, closing ch when r returns an error (EOF on normal child exit).
func pump(r interface{ Read([]byte) (int, error) }, ch chan<- []byte, chunkSize int) {
	defer close(ch)
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ch <- chunk
		}
		if err != nil {
			return
		}
	}
}

// pumpClient reads from the client connection and forwards chunks on ch;
// on any read error (including a clean EOF, which Go reports the same way
// as a reset in this context) it signals done exactly once and returns.
func pumpClient(conn net.Conn, ch chan<- []byte, done chan<- struct{}, chunkSize int) {
	buf := make([]byte, chunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ch <- chunk
		}
		if err != nil {
			close(done)
			return
		}
	}
}
