package driver

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"unsafe"
)

// 控制码下发的高层重载。所有重载只负责计算指针/长度，
// 语义完全落在 Driver.IoControl 上。

// BufferDirection 单缓冲区重载中缓冲区的用途。
type BufferDirection int

const (
	// BufferIn 缓冲区作为输入传给驱动。
	BufferIn BufferDirection = iota
	// BufferOut 缓冲区由驱动写入。
	BufferOut
)

// IoControlNone 下发无输入输出缓冲区的控制码。
func (d *Driver) IoControlNone(code uint32) error {
	_, err := d.IoControl(code, nil, nil)
	return err
}

// IoControlBuffer 下发单缓冲区控制码，dir 决定缓冲区是输入还是输出。
func (d *Driver) IoControlBuffer(code uint32, buf []byte, dir BufferDirection) (uint32, error) {
	if dir == BufferIn {
		return d.IoControl(code, buf, nil)
	}
	return d.IoControl(code, nil, buf)
}

// IoControlSet 将一个固定布局结构体作为输入下发。in 为 nil 时不带输入缓冲区。
func IoControlSet[T any](d *Driver, code uint32, in *T) (uint32, error) {
	// 类型校验失败同样是本次操作的结果，错误码先行复位。
	d.lastErr = 0
	inBuf, err := structBytes(in)
	if err != nil {
		return 0, err
	}
	n, err := d.IoControl(code, inBuf, nil)
	runtime.KeepAlive(in)
	return n, err
}

// IoControlGet 由驱动填充一个固定布局结构体。
func IoControlGet[T any](d *Driver, code uint32, out *T) (uint32, error) {
	d.lastErr = 0
	outBuf, err := structBytes(out)
	if err != nil {
		return 0, err
	}
	n, err := d.IoControl(code, nil, outBuf)
	runtime.KeepAlive(out)
	return n, err
}

// IoControlExchange 下发输入输出各自独立类型的控制码。
func IoControlExchange[In, Out any](d *Driver, code uint32, in *In, out *Out) (uint32, error) {
	d.lastErr = 0
	inBuf, err := structBytes(in)
	if err != nil {
		return 0, err
	}
	outBuf, err := structBytes(out)
	if err != nil {
		return 0, err
	}
	n, err := d.IoControl(code, inBuf, outBuf)
	runtime.KeepAlive(in)
	runtime.KeepAlive(out)
	return n, err
}

// structBytes 将结构体内存映射为字节视图。
// 视图只在单次原生调用内有效，调用返回后不得保留。
func structBytes[T any](p *T) ([]byte, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if err := checkPlain(t); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), t.Size()), nil
}

var (
	plainMu    sync.Mutex
	plainCache = map[reflect.Type]error{}
)

// checkPlain 校验类型是否可按字节与驱动原样交换：
// 固定大小且不含任何引用字段。结果按类型缓存。
func checkPlain(t reflect.Type) error {
	plainMu.Lock()
	defer plainMu.Unlock()
	if err, ok := plainCache[t]; ok {
		return err
	}
	err := walkPlain(t, t)
	plainCache[t] = err
	return err
}

func walkPlain(root, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return walkPlain(root, t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := walkPlain(root, t.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		// int/uint/uintptr 大小依赖平台，指针/切片/字符串等含引用，
		// 均不能与驱动按字节交换。
		return fmt.Errorf("%w: %s 含 %s 类型", ErrNotPlainStruct, root, t.Kind())
	}
}
