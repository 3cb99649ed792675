package primary

import (
	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// JobRegistry is the surface the protocol services and the HTTP gateway drive
type JobRegistry interface {
	GetServerPrefix() string
	GetNumberOfJobs() uint32
	GetJobInfo(job uint32) (domain.JobInfo, error)
	GetInstructionTree(job uint32) (cty.Value, error)
	EditBreakpoint(job uint32, instruction uint32, active bool) error
	SendCommand(job uint32, command domain.JobCommand) error
	SetClientReply(job uint32, id uint64, reply domain.UserInputReply) (bool, error)
}
