package derscore

import "context"

type Service interface {
	Evaluate(ctx context.Context, refPath, hypPath string, opts ...EvalOption) (*Evaluation, error)
	EvaluateAnnotations(ctx context.Context, ref, hyp *Source, opts ...EvalOption) (*Evaluation, error)
	GetEvaluation(id string) (*Evaluation, error)
	ListEvaluations(limit int) ([]*Evaluation, error)
	DeleteEvaluation(id string) error
	CountEvaluations() (int, error)
	Close() error
}

type Storage interface {
	SaveEvaluation(e *Evaluation) (string, error)
	GetEvaluation(id string) (*Evaluation, error)
	ListEvaluations(limit int) ([]*Evaluation, error)
	DeleteEvaluation(id string) error
	CountEvaluations() (int, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
