// Package k8s implements workload.Manager against a real Kubernetes
// cluster: one Secret (decrypted monitor secrets) plus one Deployment
// (the collector image) per monitor.
package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// BuildConfig resolves a *rest.Config from an explicit kubeconfig path and
// context, falling back to in-cluster config when path is empty, so
// `monitorplane serve` behaves the same whether run on a laptop or inside
// the cluster it manages.
func BuildConfig(kubeconfigPath, kubeContext string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		cfg, err := rest.InClusterConfig()
		if err == nil {
			return cfg, nil
		}
	}

	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{}
	if kubeContext != "" {
		overrides.CurrentContext = kubeContext
	}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("k8s: loading kubeconfig: %w", err)
	}
	return cfg, nil
}

// NewClientset builds a typed clientset from a kubeconfig path/context.
func NewClientset(kubeconfigPath, kubeContext string) (kubernetes.Interface, error) {
	cfg, err := BuildConfig(kubeconfigPath, kubeContext)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("k8s: building clientset: %w", err)
	}
	return clientset, nil
}
