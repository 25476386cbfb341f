// Package backup 提供排班配置与结果的持久化备份文档。
// 文档为单个 JSON 对象，日期一律 ISO-8601，人员ID为不透明字符串；
// 加载器保留未知字段，重新保存时原样写回，保证向前兼容。
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zhiban/zhiban/pkg/model"
)

// Document 备份文档。已知字段之外的内容保留在内部，
// 序列化输出按字段名排序，同一文档的编码结果稳定。
type Document struct {
	Workers        []*model.Worker       `json:"workers"`
	StartDate      string                `json:"start_date"`
	EndDate        string                `json:"end_date"`
	NumShifts      int                   `json:"num_shifts"`
	Holidays       []string              `json:"holidays"`
	VariableShifts []model.VariableShift `json:"variable_shifts"`
	Schedule       model.Schedule        `json:"schedule"`

	extra map[string]json.RawMessage
}

// New 从配置与排班表构建备份文档。节假日排序后入档。
func New(cfg *model.SchedulerConfig, schedule model.Schedule) *Document {
	holidays := append([]string(nil), cfg.Holidays...)
	sort.Strings(holidays)
	return &Document{
		Workers:        cfg.Workers,
		StartDate:      cfg.StartDate,
		EndDate:        cfg.EndDate,
		NumShifts:      cfg.NumShifts,
		Holidays:       holidays,
		VariableShifts: append([]model.VariableShift(nil), cfg.VariableShifts...),
		Schedule:       schedule.Clone(),
	}
}

// Config 从备份文档重建排班配置。未入档的引擎参数取默认值。
func (d *Document) Config() *model.SchedulerConfig {
	cfg := model.DefaultSchedulerConfig()
	cfg.StartDate = d.StartDate
	cfg.EndDate = d.EndDate
	if d.NumShifts > 0 {
		cfg.NumShifts = d.NumShifts
	}
	cfg.Holidays = append([]string(nil), d.Holidays...)
	cfg.VariableShifts = append([]model.VariableShift(nil), d.VariableShifts...)
	cfg.Workers = d.Workers
	return cfg
}

// Extra 读取保留的未知字段，供向前兼容的调用方自行解析。
func (d *Document) Extra(key string) (json.RawMessage, bool) {
	raw, ok := d.extra[key]
	return raw, ok
}

// MarshalJSON 输出规范形态：已知字段与保留字段合并后按键名排序。
func (d *Document) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(d.extra)+7)
	for k, v := range d.extra {
		fields[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("编码字段 %s 失败: %w", key, err)
		}
		fields[key] = raw
		return nil
	}

	holidays := append([]string(nil), d.Holidays...)
	sort.Strings(holidays)

	if err := put("workers", d.Workers); err != nil {
		return nil, err
	}
	if err := put("start_date", d.StartDate); err != nil {
		return nil, err
	}
	if err := put("end_date", d.EndDate); err != nil {
		return nil, err
	}
	if err := put("num_shifts", d.NumShifts); err != nil {
		return nil, err
	}
	if err := put("holidays", holidays); err != nil {
		return nil, err
	}
	if err := put("variable_shifts", d.VariableShifts); err != nil {
		return nil, err
	}
	if err := put("schedule", d.Schedule); err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

// UnmarshalJSON 解码已知字段并保留其余字段。
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	take := func(key string, dst any) error {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		delete(fields, key)
		if string(raw) == "null" {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("解析字段 %s 失败: %w", key, err)
		}
		return nil
	}

	if err := take("workers", &d.Workers); err != nil {
		return err
	}
	if err := take("start_date", &d.StartDate); err != nil {
		return err
	}
	if err := take("end_date", &d.EndDate); err != nil {
		return err
	}
	if err := take("num_shifts", &d.NumShifts); err != nil {
		return err
	}
	if err := take("holidays", &d.Holidays); err != nil {
		return err
	}
	if err := take("variable_shifts", &d.VariableShifts); err != nil {
		return err
	}
	if err := take("schedule", &d.Schedule); err != nil {
		return err
	}

	if len(fields) > 0 {
		d.extra = fields
	} else {
		d.extra = nil
	}
	return nil
}

// Marshal 编码备份文档。
func Marshal(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("编码备份文档失败: %w", err)
	}
	return data, nil
}

// Unmarshal 解码备份文档。
func Unmarshal(data []byte) (*Document, error) {
	d := &Document{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("解析备份文档失败: %w", err)
	}
	return d, nil
}

// Save 将备份文档原子写入文件：先写同目录临时文件再改名。
func Save(path string, d *Document) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建备份目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".backup-*.json")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入备份文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭备份文件失败: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("保存备份文件失败: %w", err)
	}
	return nil
}

// Load 从文件加载备份文档。
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取备份文件失败: %w", err)
	}
	return Unmarshal(data)
}
