package rpc

import (
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/OpenSysKit/drivermgr/internal/driver"
	"github.com/OpenSysKit/drivermgr/internal/service"
)

// Server 封装 JSON-RPC 服务器。
type Server struct {
	rpcServer *rpc.Server

	// Authorize 非空时在处理请求前校验客户端连接，校验失败直接断开。
	Authorize func(net.Conn) error
}

// NewServer 创建 JSON-RPC 服务器并注册驱动管理服务。
func NewServer(mgr driver.Manager) (*Server, error) {
	s := rpc.NewServer()

	drv := &service.DriverService{Driver: mgr}
	if err := s.RegisterName("Driver", drv); err != nil {
		return nil, err
	}

	return &Server{rpcServer: s}, nil
}

// Serve 接受连接并使用 JSON-RPC 处理请求。
func (s *Server) Serve(ln net.Listener) error {
	log.Println("[rpc] JSON-RPC 服务器已就绪")
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if s.Authorize != nil {
		if err := s.Authorize(conn); err != nil {
			log.Printf("[rpc] 拒绝连接: %v", err)
			return
		}
	}

	log.Printf("[rpc] 新连接: %s", conn.RemoteAddr())
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	log.Printf("[rpc] 连接已关闭: %s", conn.RemoteAddr())
}
