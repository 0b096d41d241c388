package sched

import (
	"fmt"
	"strings"
)

// FormatList renders list output, one job per line:
//
//	[0] 4242 Running    sleep 5
//	[3] 4250 Terminated echo hi (exit 0)
func FormatList(infos []Info) string {
	if len(infos) == 0 {
		return "no jobs"
	}
	var b strings.Builder
	for i, in := range infos {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatInfo(in))
	}
	return b.String()
}

func FormatInfo(in Info) string {
	line := fmt.Sprintf("[%d] %d %-10s %s", in.Ref, in.PID, in.Status, in.Command())
	if in.Status == StatusTerminated {
		line += " (" + in.Exit.String() + ")"
	}
	return line
}
