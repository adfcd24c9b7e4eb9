package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage 流水线阶段
type Stage int

const (
	StageProject Stage = iota
	StageIdea
	StageScreenplay
	StageCharacters
	StageShotlist
	StageStoryboard
	StageExport
)

var stageNames = [...]string{"Project", "Idea", "Screenplay", "Characters", "Shotlist", "Storyboard", "Export"}

// Stages 按顺序返回所有阶段
func Stages() []Stage {
	out := make([]Stage, len(stageNames))
	for i := range stageNames {
		out[i] = Stage(i)
	}
	return out
}

// Valid 检查阶段是否在范围内
func (s Stage) Valid() bool {
	return s >= StageProject && s <= StageExport
}

// String 返回阶段名
func (s Stage) String() string {
	if !s.Valid() {
		return "Stage(" + strconv.Itoa(int(s)) + ")"
	}
	return stageNames[s]
}

// MarshalText 以名称序列化
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage: %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText 支持名称或序号
func (s *Stage) UnmarshalText(b []byte) error {
	st, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStage 解析阶段名（不区分大小写）或序号
func ParseStage(v string) (Stage, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if st := Stage(n); st.Valid() {
			return st, nil
		}
		return 0, fmt.Errorf("stage index out of range: %d", n)
	}
	for i, name := range stageNames {
		if strings.EqualFold(name, v) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage: %q", v)
}
