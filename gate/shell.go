package gate

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Shell dispatches commands through /bin/sh -c in a separate process group,
// so an interrupt aimed at this process does not reach the child.
type Shell struct {
	// Path overrides the shell binary. Empty means /bin/sh.
	Path string
}

// Dispatch implements Dispatcher. It returns once the child has started;
// the exit status is collected in the background and discarded.
func (s *Shell) Dispatch(command string) error {
	sh := s.Path
	if sh == "" {
		sh = "/bin/sh"
	}

	cmd := exec.Command(sh, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", command, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("Command exited")
		}
	}()
	return nil
}
