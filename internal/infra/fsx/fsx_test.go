package fsx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.json")

	if err := WriteFileAtomic(path, []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 覆盖写
	if err := WriteFileAtomic(path, []byte("world")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "world" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, filepath.Dir(path), "a.json")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFileAtomic(filepath.Join(dir, "a.json"), []byte("hello")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	assertNoTemp(t, dir, "a.json")
	if _, err := os.Stat(filepath.Join(dir, "a.json")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件：%v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSON(path, map[string]int{"total": 2}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(b, &got); err != nil || got["total"] != 2 {
		t.Fatalf("JSON 内容不正确：%s (%v)", b, err)
	}
	if !strings.HasSuffix(string(b), "\n") {
		t.Fatalf("文件应以换行结尾")
	}
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
