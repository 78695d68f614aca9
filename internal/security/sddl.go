package security

// AdminOnlySDDL 仅允许 SYSTEM 与 Builtin Administrators 访问的安全描述符，
// 命名管道与设备对象共用该基线。
const AdminOnlySDDL = "D:P(A;;GA;;;SY)(A;;GA;;;BA)"
