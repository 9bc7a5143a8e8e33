// Package matrix runs dense float32 matrix kernels on a cmt device.
//
// An Engine compiles the matrix_addition and matrix_multiply kernels once
// and reuses its pipelines and queue for every call:
//
//	dev, err := cmt.OpenDefaultDevice()
//	if err != nil {
//		return err
//	}
//	defer dev.Release()
//
//	eng, err := matrix.NewEngine(dev)
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//
//	sum, err := eng.Add(a, b)
//
// Multiply tiles the product in 16x16 blocks through threadgroup memory and
// passes the M, N and K dimensions to the kernel as inline constants.
// MultiplyCPU is the reference the GPU result is checked against.
package matrix
