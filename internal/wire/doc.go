// Package wire defines the four qimessaging events and their encodings.
//
// Every event travels as an envelope {"name": kind, "args": [payload]}:
//
//	call   {"idm": 1, "params": {"obj": o, "member": m, "args": [...]}}
//	reply  {"idm": 1, "result": r}
//	error  {"idm": 1, "result": r}      (idm absent for connection errors)
//	signal {"result": {"obj": o, "signal": s, "link": l, "data": [...]}}
//
// The socket.io gateway on the robot speaks JSON; the plain websocket
// transport may also use the CBOR or protobuf Struct codecs.
package wire
