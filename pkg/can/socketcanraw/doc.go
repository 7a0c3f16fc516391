// Package socketcanraw is a SocketCAN bus using raw sockets directly,
// registered as "socketcanraw". Unlike the brutella based "socketcan"
// interface it supports kernel side filtering, so that only the frames
// addressed to the node reach the process. Only available on linux.
package socketcanraw
